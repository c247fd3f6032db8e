package client

import (
	"io"
	"sync"
	"time"
)

// fakePort emulates the dongle end of the serial link.
type fakePort struct {
	rx        chan byte
	closed    chan struct{}
	closeOnce sync.Once
	timeout   time.Duration

	mutex   sync.Mutex
	written [][]byte
	onWrite func(frame []byte)
}

func newFakePort() *fakePort {
	return &fakePort{
		rx:      make(chan byte, 4096),
		closed:  make(chan struct{}),
		timeout: 10 * time.Millisecond,
	}
}

func (p *fakePort) feed(data []byte) {
	for _, b := range data {
		p.rx <- b
	}
}

func (p *fakePort) Read(buf []byte) (int, error) {
	select {
	case b := <-p.rx:
		buf[0] = b
		return 1, nil
	case <-p.closed:
		return 0, io.EOF
	case <-time.After(p.timeout):
		return 0, nil
	}
}

func (p *fakePort) Write(data []byte) (int, error) {
	frame := append([]byte(nil), data...)

	p.mutex.Lock()
	p.written = append(p.written, frame)
	onWrite := p.onWrite
	p.mutex.Unlock()

	if onWrite != nil {
		onWrite(frame)
	}

	return len(data), nil
}

func (p *fakePort) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	return nil
}

func (p *fakePort) opener() PortOpener {
	return func(string) (Port, error) {
		return p, nil
	}
}

// parseFrame decodes a frame written by the host.
func parseFrame(frame []byte) (*Message, error) {
	port := newFakePort()
	port.feed(frame)

	c := NewSerialClient(port.opener())
	if err := c.Open("fake"); err != nil {
		return nil, err
	}
	defer c.Close()

	return c.ReceiveMessage()
}
