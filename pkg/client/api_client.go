package client

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/Archie3d/mesh-responder/pkg/types"
)

const (
	recvQueueSize   = 32
	errorsQueueSize = 16
)

// ApiClient talks the request/response protocol of the USB LoRa dongle.
// Responses are matched to the pending request, unsolicited messages
// (received packets, timeouts, RSSI) are delivered on Recv.
type ApiClient struct {
	serial *SerialClient
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	requestMutex sync.Mutex
	responses    chan ApiMessage

	Recv   chan ApiMessage
	Errors chan error
}

func NewApiClient(opener PortOpener) *ApiClient {
	return &ApiClient{
		serial:    NewSerialClient(opener),
		responses: make(chan ApiMessage, 1),
		Recv:      make(chan ApiMessage, recvQueueSize),
		Errors:    make(chan error, errorsQueueSize),
	}
}

func (c *ApiClient) Open(portName string) error {
	if c.serial.IsOpen() {
		return fmt.Errorf("serial port already open")
	}

	if err := c.serial.Open(portName); err != nil {
		return err
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())

	// Receive data from device
	c.wg.Go(func() {
		for c.ctx.Err() == nil {
			msg, err := c.serial.ReceiveMessage()
			if err != nil {
				var timeout *types.TimeoutError
				if errors.As(err, &timeout) {
					continue
				}

				if c.ctx.Err() != nil {
					return
				}

				c.reportError(fmt.Errorf("serial receive: %w", err))

				var framing *FramingError
				if errors.As(err, &framing) {
					continue
				}

				// The device is gone
				return
			}

			if err := c.handleMessage(msg); err != nil {
				c.reportError(err)
			}
		}
	})

	return nil
}

func (c *ApiClient) Close() error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()

	err := c.serial.Close()
	c.wg.Wait()

	return err
}

func (c *ApiClient) reportError(err error) {
	select {
	case c.Errors <- err:
	default:
		// Nobody is draining errors
	}
}

func decodeMessage(message *Message) (ApiMessage, error) {
	var msg ApiMessage

	switch message.Type {
	case MSG_VERSION:
		msg = &Version{}
	case MSG_LORA_PARAMS:
		msg = &LoRaParameters{}
	case MSG_LORA_PACKET:
		msg = &LoRaPacketParameters{}
	case MSG_TX_PARAMS:
		msg = &TxParameters{}
	case MSG_FREQUENCY:
		msg = &RadioFrequency{}
	case MSG_FALLBACK_MODE:
		msg = &RxTxFallbackMode{}
	case MSG_RX:
		msg = &SwitchToRx{}
	case MSG_TX:
		msg = &Transmit{}
	case MSG_STANDBY:
		msg = &Standby{}
	case MSG_TIMEOUT:
		msg = &RxTxTimeout{}
	case MSG_PACKET_RECEIVED:
		msg = &PacketReceived{}
	case MSG_PACKET_TRANSMITTED:
		msg = &PacketTransmitted{}
	case MSG_CONTINUOUS_RSSI:
		msg = &ContinuousRSSI{}
	case MSG_LOGGING:
		msg = &DeviceLog{}
	default:
		return nil, fmt.Errorf("unknown message 0x%02x received from device", message.Type)
	}

	if err := msg.DeserializeResponse(message); err != nil {
		return nil, err
	}

	return msg, nil
}

func isUnsolicited(msgType byte) bool {
	return msgType >= MSG_TIMEOUT
}

func (c *ApiClient) handleMessage(message *Message) error {
	msg, err := decodeMessage(message)
	if err != nil {
		return err
	}

	if !isUnsolicited(message.Type) {
		select {
		case c.responses <- msg:
		default:
			return fmt.Errorf("unexpected response %T dropped", msg)
		}
		return nil
	}

	select {
	case c.Recv <- msg:
	default:
		return fmt.Errorf("receive queue full, %T dropped", msg)
	}

	return nil
}

// SendMessage writes a request without waiting for the response.
func (c *ApiClient) SendMessage(msg ApiMessage) error {
	message := msg.SerializeRequest()
	return c.serial.SendMessage(&message)
}

// SendRequest writes a request and waits for the response of the same type.
func (c *ApiClient) SendRequest(msg ApiMessage, timeout time.Duration) (ApiMessage, error) {
	c.requestMutex.Lock()
	defer c.requestMutex.Unlock()

	// Forget responses to requests that have already timed out
	select {
	case <-c.responses:
	default:
	}

	if err := c.SendMessage(msg); err != nil {
		return nil, err
	}

	deadline := time.After(timeout)

	for {
		select {
		case res := <-c.responses:
			if reflect.TypeOf(res) == reflect.TypeOf(msg) {
				return res, nil
			}
		case <-deadline:
			return nil, &types.TimeoutError{}
		}
	}
}
