package meshtastic

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Data field numbers from meshtastic/mesh.proto.
const (
	dataPortnum      protowire.Number = 1
	dataPayload      protowire.Number = 2
	dataWantResponse protowire.Number = 3
	dataDest         protowire.Number = 4
	dataSource       protowire.Number = 5
	dataRequestId    protowire.Number = 6
	dataReplyId      protowire.Number = 7
	dataEmoji        protowire.Number = 8
	dataBitfield     protowire.Number = 9
)

// Data is the decrypted application payload of a mesh packet.
type Data struct {
	Portnum      PortNum
	Payload      []byte
	WantResponse bool
	Dest         uint32
	Source       uint32
	RequestId    uint32
	ReplyId      uint32
	Emoji        uint32
	Bitfield     uint32
}

func (d *Data) Marshal() []byte {
	var b []byte

	if d.Portnum != 0 {
		b = protowire.AppendTag(b, dataPortnum, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d.Portnum))
	}

	if len(d.Payload) > 0 {
		b = protowire.AppendTag(b, dataPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, d.Payload)
	}

	if d.WantResponse {
		b = protowire.AppendTag(b, dataWantResponse, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}

	for _, f := range []struct {
		num   protowire.Number
		value uint32
	}{
		{dataDest, d.Dest},
		{dataSource, d.Source},
		{dataRequestId, d.RequestId},
		{dataReplyId, d.ReplyId},
		{dataEmoji, d.Emoji},
	} {
		if f.value != 0 {
			b = protowire.AppendTag(b, f.num, protowire.Fixed32Type)
			b = protowire.AppendFixed32(b, f.value)
		}
	}

	if d.Bitfield != 0 {
		b = protowire.AppendTag(b, dataBitfield, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d.Bitfield))
	}

	return b
}

func (d *Data) Unmarshal(b []byte) error {
	*d = Data{}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == dataPortnum && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			d.Portnum = PortNum(v)
			b = b[n:]

		case num == dataPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			d.Payload = append([]byte{}, v...)
			b = b[n:]

		case (num == dataWantResponse || num == dataBitfield) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			if num == dataWantResponse {
				d.WantResponse = protowire.DecodeBool(v)
			} else {
				d.Bitfield = uint32(v)
			}
			b = b[n:]

		case num >= dataDest && num <= dataEmoji && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			switch num {
			case dataDest:
				d.Dest = v
			case dataSource:
				d.Source = v
			case dataRequestId:
				d.RequestId = v
			case dataReplyId:
				d.ReplyId = v
			case dataEmoji:
				d.Emoji = v
			}
			b = b[n:]

		case num <= dataBitfield:
			return fmt.Errorf("field %d has unexpected wire type %d", num, typ)

		default:
			// Fields added by newer firmware
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}

	return nil
}
