// Package clienttest provides an in-memory USB LoRa dongle for tests.
package clienttest

import (
	"io"
	"sync"
	"time"

	"github.com/Archie3d/mesh-responder/pkg/client"
)

const readTimeout = 10 * time.Millisecond

// Dongle answers the host requests the way the firmware does: set
// requests are echoed back, transmit requests are acknowledged and
// followed by a packet transmitted notification.
type Dongle struct {
	rx        chan byte
	closed    chan struct{}
	closeOnce sync.Once

	mutex    sync.Mutex
	silent   bool
	busy     bool
	requests []client.Message

	Transmitted chan []byte
}

func NewDongle() *Dongle {
	return &Dongle{
		rx:          make(chan byte, 64*1024),
		closed:      make(chan struct{}),
		Transmitted: make(chan []byte, 32),
	}
}

// Opener returns a port opener that always hands out this dongle.
func (d *Dongle) Opener() client.PortOpener {
	return func(string) (client.Port, error) {
		return d, nil
	}
}

// SetSilent makes the dongle ignore all requests.
func (d *Dongle) SetSilent(silent bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.silent = silent
}

// SetBusy makes the dongle refuse to transmit.
func (d *Dongle) SetBusy(busy bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.busy = busy
}

// Requests returns a copy of the requests received so far.
func (d *Dongle) Requests() []client.Message {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]client.Message(nil), d.requests...)
}

// Inject sends an unsolicited message to the host.
func (d *Dongle) Inject(msg client.ApiMessage) {
	message := msg.SerializeRequest()
	d.feed(client.EncodeFrame(&message))
}

// Receive delivers a radio packet to the host.
func (d *Dongle) Receive(data []byte) {
	d.Inject(&client.PacketReceived{PacketRSSI_dBm: -80, PacketSNR_dB: 6, SignalRSSI_dBm: -82, Data: data})
}

func (d *Dongle) feed(data []byte) {
	for _, b := range data {
		d.rx <- b
	}
}

func (d *Dongle) Read(buf []byte) (int, error) {
	select {
	case b := <-d.rx:
		buf[0] = b
		return 1, nil
	case <-d.closed:
		return 0, io.EOF
	case <-time.After(readTimeout):
		return 0, nil
	}
}

func (d *Dongle) Write(data []byte) (int, error) {
	request, err := parseFrame(data)
	if err != nil {
		return 0, err
	}

	d.mutex.Lock()
	d.requests = append(d.requests, *request)
	silent, busy := d.silent, d.busy
	d.mutex.Unlock()

	if !silent {
		d.respond(request, busy)
	}

	return len(data), nil
}

func (d *Dongle) respond(request *client.Message, busy bool) {
	switch request.Type {
	case client.MSG_GET_VERSION:
		d.feed(client.EncodeFrame(&client.Message{Type: client.MSG_VERSION, Payload: []byte{1, 0, 0}}))
	case client.MSG_SET_TX:
		busyByte := byte(0)
		if busy {
			busyByte = 1
		}
		d.feed(client.EncodeFrame(&client.Message{Type: client.MSG_TX, Payload: []byte{busyByte}}))

		if !busy && len(request.Payload) >= 4 {
			select {
			case d.Transmitted <- append([]byte(nil), request.Payload[4:]...):
			default:
			}
			d.Inject(&client.PacketTransmitted{TimeOnAir_ms: 120})
		}
	default:
		d.feed(client.EncodeFrame(&client.Message{Type: request.Type | 0x80, Payload: request.Payload}))
	}
}

func (d *Dongle) Close() error {
	d.closeOnce.Do(func() { close(d.closed) })
	return nil
}

func (d *Dongle) SetReadTimeout(t time.Duration) error {
	return nil
}

// framePort replays a single frame.
type framePort struct {
	data []byte
}

func (p *framePort) Read(buf []byte) (int, error) {
	if len(p.data) == 0 {
		return 0, io.EOF
	}
	buf[0] = p.data[0]
	p.data = p.data[1:]
	return 1, nil
}

func (p *framePort) Write(data []byte) (int, error)       { return len(data), nil }
func (p *framePort) Close() error                         { return nil }
func (p *framePort) SetReadTimeout(t time.Duration) error { return nil }

func parseFrame(frame []byte) (*client.Message, error) {
	port := &framePort{data: frame}

	c := client.NewSerialClient(func(string) (client.Port, error) { return port, nil })
	if err := c.Open("frame"); err != nil {
		return nil, err
	}
	defer c.Close()

	return c.ReceiveMessage()
}
