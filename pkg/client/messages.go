package client

import (
	"encoding/binary"
	"fmt"
)

const (
	// Messages to device
	MSG_INVALID           = 0x00
	MSG_GET_VERSION       = 0x01
	MSG_SET_LORA_PARAMS   = 0x02
	MSG_SET_LORA_PACKET   = 0x03
	MSG_SET_RX_PARAMS     = 0x04
	MSG_SET_TX_PARAMS     = 0x05
	MSG_SET_FREQUENCY     = 0x06
	MSG_SET_FALLBACK_MODE = 0x07
	MSG_GET_RSSI          = 0x08
	MSG_SET_RX            = 0x09
	MSG_SET_TX            = 0x0A
	MSG_SET_STANDBY       = 0x0B

	// Response messages from device to controller
	MSG_VERSION       = 0x81
	MSG_LORA_PARAMS   = 0x82
	MSG_LORA_PACKET   = 0x83
	MSG_RX_PARAMS     = 0x84
	MSG_TX_PARAMS     = 0x85
	MSG_FREQUENCY     = 0x86
	MSG_FALLBACK_MODE = 0x87
	MSG_RSSI          = 0x88
	MSG_RX            = 0x89
	MSG_TX            = 0x8A
	MSG_STANDBY       = 0x8B

	// Unsolicited messages (from device)
	MSG_TIMEOUT            = 0x90
	MSG_PACKET_RECEIVED    = 0x91
	MSG_PACKET_TRANSMITTED = 0x92
	MSG_CONTINUOUS_RSSI    = 0x93
	MSG_LOGGING            = 0x9F
)

// LoRa spreading factors
const (
	LORA_SF5  = 0x05
	LORA_SF6  = 0x06
	LORA_SF7  = 0x07
	LORA_SF8  = 0x08
	LORA_SF9  = 0x09
	LORA_SF10 = 0x0A
	LORA_SF11 = 0x0B
	LORA_SF12 = 0x0C
)

// LoRa bandwidths
const (
	LORA_BW_500 = 6
	LORA_BW_250 = 5
	LORA_BW_125 = 4
	LORA_BW_062 = 3
	LORA_BW_041 = 10
	LORA_BW_031 = 2
	LORA_BW_020 = 9
	LORA_BW_015 = 1
	LORA_BW_010 = 8
	LORA_BW_007 = 0
)

// LoRa coding rates
const (
	LORA_CR_4_5 = 0x01
	LORA_CR_4_6 = 0x02
	LORA_CR_4_7 = 0x03
	LORA_CR_4_8 = 0x04
)

// Power ramp
const (
	POWER_RAMP_10   = 0x00
	POWER_RAMP_20   = 0x01
	POWER_RAMP_40   = 0x02
	POWER_RAMP_80   = 0x03
	POWER_RAMP_200  = 0x04
	POWER_RAMP_800  = 0x05
	POWER_RAMP_1700 = 0x06
	POWER_RAMP_3400 = 0x07
)

// Fallback modes
const (
	FALLBACK_STANDBY_RC      = 0x20
	FALLBACK_STANDBY_XOSC    = 0x30
	FALLBACK_STANDBY_XOSC_RX = 0x31
	FALLBACK_FS              = 0x40
)

// Standby modes
const (
	STANDBY_RC   = 0x00
	STANDBY_XOSC = 0x01
)

type ApiMessage interface {
	SerializeRequest() Message
	DeserializeResponse(msg *Message) error
}

func boolToByte(b bool) byte {
	if b {
		return 0x01
	}

	return 0x00
}

func byteToBool(b byte) bool {
	return b != 0x00
}

type MessageTypeError struct {
	Expected byte
	Got      byte
}

func (e *MessageTypeError) Error() string {
	return fmt.Sprintf("invalid message type 0x%02x, expected 0x%02x", e.Got, e.Expected)
}

type MessagePayloadSizeError struct {
	Type byte
	Size int
}

func (e *MessagePayloadSizeError) Error() string {
	return fmt.Sprintf("invalid payload size %d for message 0x%02x", e.Size, e.Type)
}

// check validates the response type and the exact payload size.
func check(msg *Message, msgType byte, size int) error {
	if err := checkMin(msg, msgType, size); err != nil {
		return err
	}

	if len(msg.Payload) != size {
		return &MessagePayloadSizeError{Type: msg.Type, Size: len(msg.Payload)}
	}

	return nil
}

// checkMin validates the response type and the minimal payload size.
func checkMin(msg *Message, msgType byte, minSize int) error {
	if msg.Type != msgType {
		return &MessageTypeError{Expected: msgType, Got: msg.Type}
	}

	if len(msg.Payload) < minSize {
		return &MessagePayloadSizeError{Type: msg.Type, Size: len(msg.Payload)}
	}

	return nil
}

//------------------------------------------------------------------------------

type Version struct {
	Major byte
	Minor byte
	Patch byte
}

func (m *Version) String() string {
	return fmt.Sprintf("%d.%d.%d", m.Major, m.Minor, m.Patch)
}

func (m *Version) SerializeRequest() Message {
	return Message{Type: MSG_GET_VERSION, Payload: []byte{}}
}

func (m *Version) DeserializeResponse(msg *Message) error {
	if err := check(msg, MSG_VERSION, 3); err != nil {
		return err
	}

	m.Major, m.Minor, m.Patch = msg.Payload[0], msg.Payload[1], msg.Payload[2]
	return nil
}

//------------------------------------------------------------------------------

type LoRaParameters struct {
	SpreadingFactor byte
	Bandwidth       byte
	CodingRate      byte
	LowDataRate     bool
}

func (m *LoRaParameters) SerializeRequest() Message {
	return Message{
		Type: MSG_SET_LORA_PARAMS,
		Payload: []byte{
			m.SpreadingFactor,
			m.Bandwidth,
			m.CodingRate,
			boolToByte(m.LowDataRate),
		},
	}
}

func (m *LoRaParameters) DeserializeResponse(msg *Message) error {
	if err := check(msg, MSG_LORA_PARAMS, 4); err != nil {
		return err
	}

	m.SpreadingFactor = msg.Payload[0]
	m.Bandwidth = msg.Payload[1]
	m.CodingRate = msg.Payload[2]
	m.LowDataRate = byteToBool(msg.Payload[3])
	return nil
}

//------------------------------------------------------------------------------

type LoRaPacketParameters struct {
	PreambleLength uint16
	ImplicitHeader bool
	SyncWord       byte
	CrcOn          bool
	InvertIQ       bool
}

func (m *LoRaPacketParameters) SerializeRequest() Message {
	payload := binary.LittleEndian.AppendUint16(nil, m.PreambleLength)
	payload = append(payload,
		boolToByte(m.ImplicitHeader),
		m.SyncWord,
		boolToByte(m.CrcOn),
		boolToByte(m.InvertIQ),
	)

	return Message{Type: MSG_SET_LORA_PACKET, Payload: payload}
}

func (m *LoRaPacketParameters) DeserializeResponse(msg *Message) error {
	if err := check(msg, MSG_LORA_PACKET, 6); err != nil {
		return err
	}

	m.PreambleLength = binary.LittleEndian.Uint16(msg.Payload[0:2])
	m.ImplicitHeader = byteToBool(msg.Payload[2])
	m.SyncWord = msg.Payload[3]
	m.CrcOn = byteToBool(msg.Payload[4])
	m.InvertIQ = byteToBool(msg.Payload[5])
	return nil
}

//------------------------------------------------------------------------------

type TxParameters struct {
	DutyCycle byte
	HpMax     byte
	Power     byte
	RampTime  byte
}

func (m *TxParameters) SerializeRequest() Message {
	return Message{
		Type:    MSG_SET_TX_PARAMS,
		Payload: []byte{m.DutyCycle, m.HpMax, m.Power, m.RampTime},
	}
}

func (m *TxParameters) DeserializeResponse(msg *Message) error {
	if err := check(msg, MSG_TX_PARAMS, 4); err != nil {
		return err
	}

	m.DutyCycle, m.HpMax, m.Power, m.RampTime = msg.Payload[0], msg.Payload[1], msg.Payload[2], msg.Payload[3]
	return nil
}

//------------------------------------------------------------------------------

type RadioFrequency struct {
	Frequency_Hz uint32
}

func (m *RadioFrequency) SerializeRequest() Message {
	return Message{
		Type:    MSG_SET_FREQUENCY,
		Payload: binary.LittleEndian.AppendUint32(nil, m.Frequency_Hz),
	}
}

func (m *RadioFrequency) DeserializeResponse(msg *Message) error {
	if err := check(msg, MSG_FREQUENCY, 4); err != nil {
		return err
	}

	m.Frequency_Hz = binary.LittleEndian.Uint32(msg.Payload)
	return nil
}

//------------------------------------------------------------------------------

type RxTxFallbackMode struct {
	FallbackMode byte
}

func (m *RxTxFallbackMode) SerializeRequest() Message {
	return Message{Type: MSG_SET_FALLBACK_MODE, Payload: []byte{m.FallbackMode}}
}

func (m *RxTxFallbackMode) DeserializeResponse(msg *Message) error {
	if err := check(msg, MSG_FALLBACK_MODE, 1); err != nil {
		return err
	}

	m.FallbackMode = msg.Payload[0]
	return nil
}

//------------------------------------------------------------------------------

type SwitchToRx struct {
	Timeout_ms           uint32
	EnableContinuousRSSI bool
}

func (m *SwitchToRx) SerializeRequest() Message {
	payload := binary.LittleEndian.AppendUint32(nil, m.Timeout_ms)
	payload = append(payload, boolToByte(m.EnableContinuousRSSI))

	return Message{Type: MSG_SET_RX, Payload: payload}
}

func (m *SwitchToRx) DeserializeResponse(msg *Message) error {
	if err := check(msg, MSG_RX, 5); err != nil {
		return err
	}

	m.Timeout_ms = binary.LittleEndian.Uint32(msg.Payload[0:4])
	m.EnableContinuousRSSI = byteToBool(msg.Payload[4])
	return nil
}

//------------------------------------------------------------------------------

type Transmit struct {
	Timeout_ms uint32 // Used in request only
	Data       []byte // Used in request only
	Busy       bool   // Used in response only
}

func (m *Transmit) SerializeRequest() Message {
	payload := binary.LittleEndian.AppendUint32(make([]byte, 0, len(m.Data)+4), m.Timeout_ms)
	payload = append(payload, m.Data...)

	return Message{Type: MSG_SET_TX, Payload: payload}
}

func (m *Transmit) DeserializeResponse(msg *Message) error {
	if err := check(msg, MSG_TX, 1); err != nil {
		return err
	}

	m.Busy = byteToBool(msg.Payload[0])
	return nil
}

//------------------------------------------------------------------------------

type Standby struct {
	StandbyMode byte
}

func (m *Standby) SerializeRequest() Message {
	return Message{Type: MSG_SET_STANDBY, Payload: []byte{m.StandbyMode}}
}

func (m *Standby) DeserializeResponse(msg *Message) error {
	if err := check(msg, MSG_STANDBY, 1); err != nil {
		return err
	}

	m.StandbyMode = msg.Payload[0]
	return nil
}

//==============================================================================
/*
Unsolicited messages from the device
*/

type RxTxTimeout struct{}

func (m *RxTxTimeout) SerializeRequest() Message {
	return Message{Type: MSG_TIMEOUT, Payload: []byte{}}
}

func (m *RxTxTimeout) DeserializeResponse(msg *Message) error {
	return check(msg, MSG_TIMEOUT, 0)
}

//------------------------------------------------------------------------------

type PacketReceived struct {
	PacketRSSI_dBm int8
	PacketSNR_dB   int8
	SignalRSSI_dBm int8
	Data           []byte
}

func (m *PacketReceived) SerializeRequest() Message {
	payload := []byte{byte(m.PacketRSSI_dBm), byte(m.PacketSNR_dB), byte(m.SignalRSSI_dBm)}

	return Message{Type: MSG_PACKET_RECEIVED, Payload: append(payload, m.Data...)}
}

func (m *PacketReceived) DeserializeResponse(msg *Message) error {
	if err := checkMin(msg, MSG_PACKET_RECEIVED, 3); err != nil {
		return err
	}

	m.PacketRSSI_dBm = int8(msg.Payload[0])
	m.PacketSNR_dB = int8(msg.Payload[1])
	m.SignalRSSI_dBm = int8(msg.Payload[2])
	m.Data = append([]byte(nil), msg.Payload[3:]...)
	return nil
}

//------------------------------------------------------------------------------

type PacketTransmitted struct {
	TimeOnAir_ms uint32
}

func (m *PacketTransmitted) SerializeRequest() Message {
	return Message{
		Type:    MSG_PACKET_TRANSMITTED,
		Payload: binary.LittleEndian.AppendUint32(nil, m.TimeOnAir_ms),
	}
}

func (m *PacketTransmitted) DeserializeResponse(msg *Message) error {
	if err := check(msg, MSG_PACKET_TRANSMITTED, 4); err != nil {
		return err
	}

	m.TimeOnAir_ms = binary.LittleEndian.Uint32(msg.Payload)
	return nil
}

//------------------------------------------------------------------------------

type ContinuousRSSI struct {
	RSSI_dBm int16
}

func (m *ContinuousRSSI) SerializeRequest() Message {
	return Message{
		Type:    MSG_CONTINUOUS_RSSI,
		Payload: binary.LittleEndian.AppendUint16(nil, uint16(m.RSSI_dBm)),
	}
}

func (m *ContinuousRSSI) DeserializeResponse(msg *Message) error {
	if err := check(msg, MSG_CONTINUOUS_RSSI, 2); err != nil {
		return err
	}

	m.RSSI_dBm = int16(binary.LittleEndian.Uint16(msg.Payload))
	return nil
}

//------------------------------------------------------------------------------

// DeviceLog carries a debug line printed by the dongle firmware.
type DeviceLog struct {
	Text string
}

func (m *DeviceLog) SerializeRequest() Message {
	return Message{Type: MSG_LOGGING, Payload: []byte(m.Text)}
}

func (m *DeviceLog) DeserializeResponse(msg *Message) error {
	if err := checkMin(msg, MSG_LOGGING, 0); err != nil {
		return err
	}

	m.Text = string(msg.Payload)
	return nil
}
