package meshtastic

import "strconv"

// PortNum identifies the application a decoded payload belongs to.
// Values follow meshtastic/portnums.proto.
type PortNum uint32

const (
	PortNum_UNKNOWN_APP                 PortNum = 0
	PortNum_TEXT_MESSAGE_APP            PortNum = 1
	PortNum_REMOTE_HARDWARE_APP         PortNum = 2
	PortNum_POSITION_APP                PortNum = 3
	PortNum_NODEINFO_APP                PortNum = 4
	PortNum_ROUTING_APP                 PortNum = 5
	PortNum_ADMIN_APP                   PortNum = 6
	PortNum_TEXT_MESSAGE_COMPRESSED_APP PortNum = 7
	PortNum_WAYPOINT_APP                PortNum = 8
	PortNum_AUDIO_APP                   PortNum = 9
	PortNum_DETECTION_SENSOR_APP        PortNum = 10
	PortNum_REPLY_APP                   PortNum = 32
	PortNum_IP_TUNNEL_APP               PortNum = 33
	PortNum_PAXCOUNTER_APP              PortNum = 34
	PortNum_SERIAL_APP                  PortNum = 64
	PortNum_STORE_FORWARD_APP           PortNum = 65
	PortNum_RANGE_TEST_APP              PortNum = 66
	PortNum_TELEMETRY_APP               PortNum = 67
	PortNum_ZPS_APP                     PortNum = 68
	PortNum_SIMULATOR_APP               PortNum = 69
	PortNum_TRACEROUTE_APP              PortNum = 70
	PortNum_NEIGHBORINFO_APP            PortNum = 71
	PortNum_ATAK_PLUGIN                 PortNum = 72
	PortNum_MAP_REPORT_APP              PortNum = 73
	PortNum_POWERSTRESS_APP             PortNum = 74
	PortNum_PRIVATE_APP                 PortNum = 256
	PortNum_ATAK_FORWARDER              PortNum = 257
)

var portNumNames = map[PortNum]string{
	PortNum_UNKNOWN_APP:                 "UNKNOWN_APP",
	PortNum_TEXT_MESSAGE_APP:            "TEXT_MESSAGE_APP",
	PortNum_REMOTE_HARDWARE_APP:         "REMOTE_HARDWARE_APP",
	PortNum_POSITION_APP:                "POSITION_APP",
	PortNum_NODEINFO_APP:                "NODEINFO_APP",
	PortNum_ROUTING_APP:                 "ROUTING_APP",
	PortNum_ADMIN_APP:                   "ADMIN_APP",
	PortNum_TEXT_MESSAGE_COMPRESSED_APP: "TEXT_MESSAGE_COMPRESSED_APP",
	PortNum_WAYPOINT_APP:                "WAYPOINT_APP",
	PortNum_AUDIO_APP:                   "AUDIO_APP",
	PortNum_DETECTION_SENSOR_APP:        "DETECTION_SENSOR_APP",
	PortNum_REPLY_APP:                   "REPLY_APP",
	PortNum_IP_TUNNEL_APP:               "IP_TUNNEL_APP",
	PortNum_PAXCOUNTER_APP:              "PAXCOUNTER_APP",
	PortNum_SERIAL_APP:                  "SERIAL_APP",
	PortNum_STORE_FORWARD_APP:           "STORE_FORWARD_APP",
	PortNum_RANGE_TEST_APP:              "RANGE_TEST_APP",
	PortNum_TELEMETRY_APP:               "TELEMETRY_APP",
	PortNum_ZPS_APP:                     "ZPS_APP",
	PortNum_SIMULATOR_APP:               "SIMULATOR_APP",
	PortNum_TRACEROUTE_APP:              "TRACEROUTE_APP",
	PortNum_NEIGHBORINFO_APP:            "NEIGHBORINFO_APP",
	PortNum_ATAK_PLUGIN:                 "ATAK_PLUGIN",
	PortNum_MAP_REPORT_APP:              "MAP_REPORT_APP",
	PortNum_POWERSTRESS_APP:             "POWERSTRESS_APP",
	PortNum_PRIVATE_APP:                 "PRIVATE_APP",
	PortNum_ATAK_FORWARDER:              "ATAK_FORWARDER",
}

// String returns the enum name, or the number for values this build
// does not know about.
func (p PortNum) String() string {
	if name, ok := portNumNames[p]; ok {
		return name
	}
	return strconv.FormatUint(uint64(p), 10)
}
