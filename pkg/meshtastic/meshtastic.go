package meshtastic

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Archie3d/mesh-responder/pkg/client"
	"github.com/Archie3d/mesh-responder/pkg/types"
	"github.com/charmbracelet/log"
)

const (
	requestTimeout  = time.Second
	transmitTimeout = 3 * time.Second
)

type seenPacket struct {
	key      packetKey
	received time.Time
}

type MeshtasticClient struct {
	apiClient *client.ApiClient
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	dedupWindow time.Duration
	seenPackets []seenPacket

	rssi_dBm     atomic.Int32
	timeOnAir_ms atomic.Uint32

	IncomingPackets chan *client.PacketReceived
	OutgoingPackets chan []byte
	Errors          chan error
}

// Create a new Meshtastic client but do not run it yet.
func NewMeshtasticClient(opener client.PortOpener, dedupWindow time.Duration) *MeshtasticClient {
	return &MeshtasticClient{
		apiClient:       client.NewApiClient(opener),
		dedupWindow:     dedupWindow,
		IncomingPackets: make(chan *client.PacketReceived, 10),
		OutgoingPackets: make(chan []byte, 10),
		Errors:          make(chan error, 10),
	}
}

// Open serial port to talk to the LoRa device and
// start receiving Meshtastic messages.
func (c *MeshtasticClient) Open(portName string, radio *RadioConfiguration) error {
	if err := c.apiClient.Open(portName); err != nil {
		return err
	}

	if err := c.initRadio(radio); err != nil {
		c.apiClient.Close()
		return fmt.Errorf("radio on %s is not responding: %w", portName, err)
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.wg.Go(func() {
	loop:
		for {
			select {
			case <-c.ctx.Done():
				break loop
			case radioMessage := <-c.apiClient.Recv:
				c.handleRadioMessage(radioMessage)
			case outgoingPacket := <-c.OutgoingPackets:
				c.transmitPacket(outgoingPacket)
			case err := <-c.apiClient.Errors:
				c.reportError(err)
			}
		}

		c.deinitRadio()
	})

	return nil
}

// Stop processing messages and close the serial port to the device.
func (c *MeshtasticClient) Close() error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()

	c.wg.Wait()

	return c.apiClient.Close()
}

func (c *MeshtasticClient) RSSI() int32 {
	return c.rssi_dBm.Load()
}

func (c *MeshtasticClient) TimeOnAir() time.Duration {
	return time.Duration(c.timeOnAir_ms.Load()) * time.Millisecond
}

func (c *MeshtasticClient) initRadio(radio *RadioConfiguration) error {
	res, err := c.apiClient.SendRequest(&client.Version{}, requestTimeout)
	if err != nil {
		return err
	}
	log.With("firmware", res).Info("LoRa dongle found")

	requests := []client.ApiMessage{
		// Switch back to RX once the message has been transmitted
		&client.RxTxFallbackMode{FallbackMode: client.FALLBACK_STANDBY_XOSC_RX},
		radio.Power.txParameters(),
		&client.RadioFrequency{Frequency_Hz: radio.Frequency},
		&client.LoRaParameters{
			SpreadingFactor: byte(radio.SpreadingFactor),
			Bandwidth:       byte(radio.Bandwidth),
			CodingRate:      byte(radio.CodingRate),
			LowDataRate:     false,
		},
		&client.LoRaPacketParameters{
			PreambleLength: radio.PreambleLength,
			SyncWord:       radio.SyncWord,
			CrcOn:          true,
		},
	}

	for _, request := range requests {
		if _, err := c.apiClient.SendRequest(request, requestTimeout); err != nil {
			return fmt.Errorf("%T: %w", request, err)
		}
	}

	log.With(
		"frequency", radio.Frequency,
		"sf", radio.SpreadingFactor,
		"bw", radio.Bandwidth.KHz(),
		"power", radio.Power,
	).Info("Radio configured")

	// Start receiving
	c.switchToRx()

	return nil
}

func (c *MeshtasticClient) deinitRadio() {
	_, _ = c.apiClient.SendRequest(&client.Standby{StandbyMode: client.STANDBY_XOSC}, requestTimeout)
}

func (c *MeshtasticClient) switchToRx() {
	if _, err := c.apiClient.SendRequest(&client.SwitchToRx{}, requestTimeout); err != nil {
		c.reportError(fmt.Errorf("switch to RX: %w", err))
	}
}

func (c *MeshtasticClient) reportError(err error) {
	select {
	case c.Errors <- err:
	default:
	}
}

func (c *MeshtasticClient) handleRadioMessage(msg client.ApiMessage) {
	switch m := msg.(type) {
	case *client.PacketReceived:
		// Switch back to RX mode
		c.switchToRx()

		if c.markSeen(m.Data) {
			select {
			case c.IncomingPackets <- m:
			case <-c.ctx.Done():
			}
		}
	case *client.PacketTransmitted:
		// Capture total time on air
		c.timeOnAir_ms.Add(m.TimeOnAir_ms)
		c.switchToRx()
		log.With("time_on_air_ms", m.TimeOnAir_ms).Debug("Packet transmitted")
	case *client.RxTxTimeout:
		// RX runs without a timeout, so this is a transmit timeout
		c.switchToRx()
		c.reportError(fmt.Errorf("transmit timeout"))
	case *client.ContinuousRSSI:
		c.rssi_dBm.Store(int32(m.RSSI_dBm))
	case *client.DeviceLog:
		log.With("device", m.Text).Debug("Dongle log")
	}
}

func (c *MeshtasticClient) forgetOldSeenPackets(now time.Time) {
	seenPackets := c.seenPackets[:0]

	for _, sp := range c.seenPackets {
		if now.Sub(sp.received) < c.dedupWindow {
			seenPackets = append(seenPackets, sp)
		}
	}

	c.seenPackets = seenPackets
}

// markSeen records the packet and returns false if it has been
// seen within the dedup window.
func (c *MeshtasticClient) markSeen(data []byte) bool {
	key, ok := keyOf(data)
	if !ok {
		// Let the node report it as undecodable
		return true
	}

	now := time.Now()
	c.forgetOldSeenPackets(now)

	for _, sp := range c.seenPackets {
		if sp.key == key {
			return false
		}
	}

	c.seenPackets = append(c.seenPackets, seenPacket{key: key, received: now})
	return true
}

func (c *MeshtasticClient) transmitPacket(packet []byte) {
	// Our own packet relayed back by neighbours must not be handled again
	c.markSeen(packet)

	res, err := c.apiClient.SendRequest(&client.Transmit{Timeout_ms: uint32(transmitTimeout.Milliseconds()), Data: packet}, transmitTimeout)
	if err != nil {
		c.reportError(fmt.Errorf("transmit: %w", err))
		return
	}

	if tr, ok := res.(*client.Transmit); ok && tr.Busy {
		c.reportError(fmt.Errorf("transmit: %w", &types.BusyError{}))
	}
}
