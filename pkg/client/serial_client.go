package client

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Archie3d/mesh-responder/pkg/types"
	"go.bug.st/serial"
)

const (
	DEFAULT_BAUD_RATE = 115200

	START         = 0xAA
	ESCAPE        = 0x7D
	ESCAPE_START  = 0x8A
	ESCAPE_ESCAPE = 0x5D
)

const readTimeout = 1 * time.Second

// Port is the part of serial.Port the client needs.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// PortOpener opens a named serial port.
type PortOpener func(portName string) (Port, error)

// OpenSerialPort opens a real serial port with the dongle line settings.
func OpenSerialPort(portName string) (Port, error) {
	mode := &serial.Mode{
		BaudRate: DEFAULT_BAUD_RATE,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}

	return port, nil
}

func crc16(crc0 uint16, data []byte) uint16 {
	crc := crc0
	for _, b := range data {
		a := (crc >> 8) ^ uint16(b)
		crc = (a << 2) ^ (a << 1) ^ a ^ (crc << 8)
	}
	return crc
}

func escape(data []byte) []byte {
	escaped := make([]byte, 0, len(data))

	for _, b := range data {
		switch b {
		case START:
			escaped = append(escaped, ESCAPE, ESCAPE_START)
		case ESCAPE:
			escaped = append(escaped, ESCAPE, ESCAPE_ESCAPE)
		default:
			escaped = append(escaped, b)
		}
	}
	return escaped
}

// FramingError is a corrupted frame. The link itself is still usable.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return "framing error: " + e.Reason
}

type Message struct {
	Type    byte
	Payload []byte
}

// EncodeFrame builds the on-wire frame:
// START | escaped(type, length LE16, payload, crc LE16)
func EncodeFrame(message *Message) []byte {
	data := make([]byte, 0, len(message.Payload)+5)

	data = append(data, message.Type)

	payloadLength := uint16(len(message.Payload))
	data = append(data, byte(payloadLength&0xFF), byte(payloadLength>>8))
	data = append(data, message.Payload...)

	crc := crc16(0, data)
	data = append(data, byte(crc&0xFF), byte(crc>>8))

	return append([]byte{START}, escape(data)...)
}

type SerialClient struct {
	opener PortOpener

	mutex      sync.RWMutex
	writeMutex sync.Mutex
	port       Port
}

func NewSerialClient(opener PortOpener) *SerialClient {
	if opener == nil {
		opener = OpenSerialPort
	}

	return &SerialClient{opener: opener}
}

func (c *SerialClient) Open(portName string) error {
	port, err := c.opener(portName)
	if err != nil {
		return err
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return err
	}

	c.mutex.Lock()
	c.port = port
	c.mutex.Unlock()

	return nil
}

func (c *SerialClient) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.port == nil {
		return nil
	}

	err := c.port.Close()
	c.port = nil

	return err
}

func (c *SerialClient) currentPort() Port {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.port
}

func (c *SerialClient) IsOpen() bool {
	return c.currentPort() != nil
}

/*
Send an unstructured message to the serial port.
*/
func (c *SerialClient) SendMessage(message *Message) error {
	port := c.currentPort()
	if port == nil {
		return fmt.Errorf("port is not open")
	}

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	n, err := port.Write(EncodeFrame(message))
	if err != nil {
		return err
	}

	if n < 1 {
		return &types.TimeoutError{}
	}

	return nil
}

func readRaw(port Port) (byte, error) {
	buf := make([]byte, 1)

	n, err := port.Read(buf)
	if err != nil {
		return 0, err
	}

	if n != 1 {
		return 0, &types.TimeoutError{}
	}

	return buf[0], nil
}

func readByte(port Port) (byte, error) {
	b, err := readRaw(port)
	if err != nil || b != ESCAPE {
		return b, err
	}

	b, err = readRaw(port)
	if err != nil {
		return 0, err
	}

	switch b {
	case ESCAPE_START:
		return START, nil
	case ESCAPE_ESCAPE:
		return ESCAPE, nil
	}

	return 0, &FramingError{Reason: fmt.Sprintf("invalid escape sequence 0x%02x", b)}
}

/*
Receive an unstructured message from the serial port.
Returns TimeoutError if nothing arrived within the read timeout.
*/
func (c *SerialClient) ReceiveMessage() (*Message, error) {
	port := c.currentPort()
	if port == nil {
		return nil, fmt.Errorf("port is not open")
	}

	for {
		b, err := readRaw(port)
		if err != nil {
			return nil, err
		}

		if b == START {
			break
		}
	}

	header := make([]byte, 3)
	for i := range header {
		b, err := readByte(port)
		if err != nil {
			return nil, err
		}
		header[i] = b
	}

	payloadLength := uint16(header[2])<<8 | uint16(header[1])
	payload := make([]byte, payloadLength)

	for i := range payload {
		b, err := readByte(port)
		if err != nil {
			return nil, err
		}
		payload[i] = b
	}

	var crcBytes [2]byte
	for i := range crcBytes {
		b, err := readByte(port)
		if err != nil {
			return nil, err
		}
		crcBytes[i] = b
	}

	calculatedCrc := crc16(crc16(0, header), payload)
	crc := uint16(crcBytes[1])<<8 | uint16(crcBytes[0])

	if crc != calculatedCrc {
		return nil, &FramingError{Reason: fmt.Sprintf("CRC mismatch: got %04x, expected %04x", crc, calculatedCrc)}
	}

	return &Message{
		Type:    header[0],
		Payload: payload,
	}, nil
}
