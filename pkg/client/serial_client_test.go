package client

import (
	"testing"

	"github.com/Archie3d/mesh-responder/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape(t *testing.T) {
	assert.Equal(t,
		[]byte{0x01, ESCAPE, ESCAPE_START, 0x02, ESCAPE, ESCAPE_ESCAPE},
		escape([]byte{0x01, START, 0x02, ESCAPE}),
	)
}

func TestFrameRoundTrip(t *testing.T) {
	message := &Message{
		Type:    MSG_PACKET_RECEIVED,
		Payload: []byte{0xF0, 0x05, 0xE0, START, ESCAPE, 0x00, START},
	}

	frame := EncodeFrame(message)
	assert.Equal(t, byte(START), frame[0])

	// The only unescaped start byte is the first one
	for _, b := range frame[1:] {
		assert.NotEqual(t, byte(START), b)
	}

	decoded, err := parseFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, message, decoded)
}

func TestReceiveSkipsGarbage(t *testing.T) {
	port := newFakePort()
	port.feed([]byte{0x00, 0x13, 0x37})
	port.feed(EncodeFrame(&Message{Type: MSG_VERSION, Payload: []byte{1, 2, 3}}))

	c := NewSerialClient(port.opener())
	require.NoError(t, c.Open("fake"))
	defer c.Close()

	msg, err := c.ReceiveMessage()
	require.NoError(t, err)
	assert.Equal(t, byte(MSG_VERSION), msg.Type)
	assert.Equal(t, []byte{1, 2, 3}, msg.Payload)
}

func TestReceiveCrcMismatch(t *testing.T) {
	frame := EncodeFrame(&Message{Type: MSG_STANDBY, Payload: []byte{0x01}})
	frame[len(frame)-1] ^= 0x01

	_, err := parseFrame(frame)
	assert.ErrorContains(t, err, "CRC mismatch")
}

func TestReceiveTimeout(t *testing.T) {
	port := newFakePort()

	c := NewSerialClient(port.opener())
	require.NoError(t, c.Open("fake"))
	defer c.Close()

	_, err := c.ReceiveMessage()
	assert.ErrorAs(t, err, new(*types.TimeoutError))
}

func TestClosedClient(t *testing.T) {
	c := NewSerialClient(newFakePort().opener())

	assert.False(t, c.IsOpen())
	assert.Error(t, c.SendMessage(&Message{Type: MSG_GET_VERSION}))

	_, err := c.ReceiveMessage()
	assert.Error(t, err)
	assert.NoError(t, c.Close())
}

func TestInvalidEscape(t *testing.T) {
	_, err := parseFrame([]byte{START, MSG_STANDBY, ESCAPE, 0x00})
	assert.ErrorAs(t, err, new(*FramingError))
}
