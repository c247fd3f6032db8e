package meshtastic

import (
	"encoding/binary"
	"fmt"

	"github.com/Archie3d/mesh-responder/pkg/types"
)

const headerSize = 16

const (
	flagHopLimitMask  = 0x07
	flagWantAck       = 0x08
	flagViaMqtt       = 0x10
	flagHopStartMask  = 0xE0
	flagHopStartShift = 5
)

// MeshPacket is a packet as seen on air: the clear text header
// plus either the decoded payload or the bytes no channel could decrypt.
type MeshPacket struct {
	To          types.NodeId
	From        types.NodeId
	Id          uint32
	HopLimit    uint8
	HopStart    uint8
	WantAck     bool
	ViaMqtt     bool
	ChannelHash byte
	NextHop     byte
	RelayNode   byte

	// Set on received packets
	Channel uint32
	RxRssi  int32
	RxSnr   float32

	Decoded   *Data
	Encrypted []byte
}

func (p *MeshPacket) flags() byte {
	flags := p.HopLimit & flagHopLimitMask

	if p.WantAck {
		flags |= flagWantAck
	}

	if p.ViaMqtt {
		flags |= flagViaMqtt
	}

	flags |= (p.HopStart << flagHopStartShift) & flagHopStartMask

	return flags
}

func (p *MeshPacket) appendHeader(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, uint32(p.To))
	b = binary.LittleEndian.AppendUint32(b, uint32(p.From))
	b = binary.LittleEndian.AppendUint32(b, p.Id)
	return append(b, p.flags(), p.ChannelHash, p.NextHop, p.RelayNode)
}

// parseHeader reads the clear text header, the rest of data is
// left in Encrypted.
func parseHeader(data []byte) (*MeshPacket, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("packet too short: %d bytes", len(data))
	}

	flags := data[12]

	return &MeshPacket{
		To:          types.NodeId(binary.LittleEndian.Uint32(data[0:4])),
		From:        types.NodeId(binary.LittleEndian.Uint32(data[4:8])),
		Id:          binary.LittleEndian.Uint32(data[8:12]),
		HopLimit:    flags & flagHopLimitMask,
		HopStart:    (flags & flagHopStartMask) >> flagHopStartShift,
		WantAck:     flags&flagWantAck != 0,
		ViaMqtt:     flags&flagViaMqtt != 0,
		ChannelHash: data[13],
		NextHop:     data[14],
		RelayNode:   data[15],
		Encrypted:   append([]byte(nil), data[headerSize:]...),
	}, nil
}

// packetKey identifies a packet for duplicate detection.
type packetKey struct {
	from types.NodeId
	id   uint32
}

func keyOf(data []byte) (packetKey, bool) {
	if len(data) < headerSize {
		return packetKey{}, false
	}

	return packetKey{
		from: types.NodeId(binary.LittleEndian.Uint32(data[4:8])),
		id:   binary.LittleEndian.Uint32(data[8:12]),
	}, true
}
