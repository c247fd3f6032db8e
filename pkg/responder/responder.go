// Package responder watches inbound mesh traffic and answers text
// messages containing a trigger phrase with a date stamped reply.
package responder

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
)

// TextPortNum is the port name of plain text messages.
const TextPortNum = "TEXT_MESSAGE_APP"

// DateLayout is MM-DD-YYYY.
const DateLayout = "01-02-2006"

// Decoded is the parsed application payload of a packet.
// A nil Payload means the field was missing from the packet.
type Decoded struct {
	PortNum string
	Payload []byte
}

// InboundEvent is a packet heard by the radio. Decoded is nil when
// the packet could not be decrypted or parsed.
type InboundEvent struct {
	From     uint32
	To       uint32
	Channel  uint32
	PacketId uint32
	Decoded  *Decoded
}

// RadioChannel is the transport the engine listens on and replies through.
type RadioChannel interface {
	Subscribe(handler func(event InboundEvent))
	SendText(text string) error
}

// State is Idle until Start succeeds, then Running for good.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Stats counts the events seen since Start.
type Stats struct {
	Received   uint64
	Ignored    uint64
	Malformed  uint64
	Matched    uint64
	Sent       uint64
	SendFailed uint64
}

// Option configures an Engine in NewEngine.
type Option func(e *Engine)

// WithClock sets the time source used for the reply date stamp.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine replies to text messages containing the trigger.
type Engine struct {
	replyMessage string
	trigger      string
	radio        RadioChannel

	now    func() time.Time
	logger *log.Logger

	// Held for the whole check-then-send sequence of one event
	mutex sync.Mutex
	state atomic.Int32

	received   atomic.Uint64
	ignored    atomic.Uint64
	malformed  atomic.Uint64
	matched    atomic.Uint64
	sent       atomic.Uint64
	sendFailed atomic.Uint64
}

func NewEngine(replyMessage, trigger string, radio RadioChannel, options ...Option) *Engine {
	e := &Engine{
		replyMessage: replyMessage,
		trigger:      trigger,
		radio:        radio,
		now:          time.Now,
		logger:       log.Default(),
	}

	for _, option := range options {
		option(e)
	}

	return e
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

// Start subscribes to the radio channel. It can only be called once.
func (e *Engine) Start() error {
	if e.replyMessage == "" || e.trigger == "" {
		return &IncompleteSettingsError{
			MissingReply:   e.replyMessage == "",
			MissingTrigger: e.trigger == "",
		}
	}

	if !e.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return &AlreadyRunningError{}
	}

	e.radio.Subscribe(e.OnInboundEvent)

	e.logger.With("trigger", e.trigger, "reply", e.replyMessage).Info("Listening for messages")

	return nil
}

// OnInboundEvent handles one packet: decoded text messages containing
// the trigger are answered exactly once, everything else is dropped.
func (e *Engine) OnInboundEvent(event InboundEvent) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.State() != Running {
		return
	}

	e.received.Add(1)

	if event.Decoded == nil || event.Decoded.PortNum != TextPortNum {
		e.ignored.Add(1)
		return
	}

	text, err := textOf(&event)
	if err != nil {
		e.malformed.Add(1)
		e.logger.With("err", err, "packet_id", event.PacketId).Warn("Dropping message")
		return
	}

	e.logger.With("from", nodeName(event.From), "channel", event.Channel).Infof("Received: %s", text)

	if !strings.Contains(text, e.trigger) {
		return
	}

	e.matched.Add(1)

	reply := e.now().Format(DateLayout) + " " + e.replyMessage

	if err := e.radio.SendText(reply); err != nil {
		e.sendFailed.Add(1)
		e.logger.With("err", err).Error("Failed to send reply")
		return
	}

	e.sent.Add(1)
	e.logger.Infof("Sent: %s", reply)
}

func (e *Engine) Stats() Stats {
	return Stats{
		Received:   e.received.Load(),
		Ignored:    e.ignored.Load(),
		Malformed:  e.malformed.Load(),
		Matched:    e.matched.Load(),
		Sent:       e.sent.Load(),
		SendFailed: e.sendFailed.Load(),
	}
}

func textOf(event *InboundEvent) (string, error) {
	payload := event.Decoded.Payload

	if payload == nil {
		return "", &MalformedPayloadError{From: event.From, Reason: "payload is missing"}
	}

	if !utf8.Valid(payload) {
		return "", &MalformedPayloadError{From: event.From, Reason: "payload is not valid UTF-8"}
	}

	return string(payload), nil
}

func nodeName(id uint32) string {
	return fmt.Sprintf("!%08x", id)
}
