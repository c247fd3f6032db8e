package meshtastic

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/Archie3d/mesh-responder/pkg/client"
	"github.com/Archie3d/mesh-responder/pkg/types"
)

type ChannelHashError struct {
	Expected byte
	Got      byte
}

func (e *ChannelHashError) Error() string {
	return fmt.Sprintf("channel hash mismatch: 0x%02x, expected 0x%02x", e.Got, e.Expected)
}

type Channel struct {
	id            uint32
	name          string
	encryptionKey types.CryptoKey
	hash          byte
}

// NewChannel creates a channel. Single byte keys are expanded, an empty
// key or key 0x00 means the channel is not encrypted.
func NewChannel(id uint32, name string, key types.CryptoKey) *Channel {
	key = key.Expand()
	if len(key) == 1 && key[0] == 0x00 {
		key = nil
	}

	var hash byte
	for _, c := range []byte(name) {
		hash ^= c
	}
	for _, c := range key {
		hash ^= c
	}

	return &Channel{
		id:            id,
		name:          name,
		encryptionKey: key,
		hash:          hash,
	}
}

func (c *Channel) Id() uint32 {
	return c.id
}

func (c *Channel) Name() string {
	return c.name
}

func (c *Channel) Hash() byte {
	return c.hash
}

// crypt encrypts or decrypts the payload in place with AES-CTR.
func (c *Channel) crypt(from types.NodeId, packetId uint32, payload []byte) error {
	if len(c.encryptionKey) == 0 {
		return nil
	}

	block, err := aes.NewCipher(c.encryptionKey)
	if err != nil {
		return fmt.Errorf("channel %q: %w", c.name, err)
	}

	nonce := make([]byte, aes.BlockSize)
	binary.LittleEndian.PutUint64(nonce[0:8], uint64(packetId))
	binary.LittleEndian.PutUint32(nonce[8:12], uint32(from))

	cipher.NewCTR(block, nonce).XORKeyStream(payload, payload)

	return nil
}

// DecodePacket decrypts a received packet with this channel key.
func (c *Channel) DecodePacket(packet *client.PacketReceived) (*MeshPacket, error) {
	meshPacket, err := parseHeader(packet.Data)
	if err != nil {
		return nil, err
	}

	if meshPacket.ChannelHash != c.hash {
		return nil, &ChannelHashError{Expected: c.hash, Got: meshPacket.ChannelHash}
	}

	payload := append([]byte(nil), meshPacket.Encrypted...)
	if err := c.crypt(meshPacket.From, meshPacket.Id, payload); err != nil {
		return nil, err
	}

	data := &Data{}
	if err := data.Unmarshal(payload); err != nil {
		return nil, fmt.Errorf("channel %q: %w", c.name, err)
	}

	meshPacket.Channel = c.id
	meshPacket.RxRssi = int32(packet.PacketRSSI_dBm)
	meshPacket.RxSnr = float32(packet.PacketSNR_dB)
	meshPacket.Decoded = data
	meshPacket.Encrypted = nil

	return meshPacket, nil
}

// EncodePacket builds the on-air bytes of a packet with a decoded payload.
func (c *Channel) EncodePacket(meshPacket *MeshPacket) ([]byte, error) {
	if meshPacket.Decoded == nil {
		return nil, fmt.Errorf("unencrypted data expected")
	}

	header := *meshPacket
	header.ChannelHash = c.hash

	payload := meshPacket.Decoded.Marshal()
	if err := c.crypt(meshPacket.From, meshPacket.Id, payload); err != nil {
		return nil, err
	}

	packet := header.appendHeader(make([]byte, 0, headerSize+len(payload)))
	return append(packet, payload...), nil
}
