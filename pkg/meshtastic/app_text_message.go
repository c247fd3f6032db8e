package meshtastic

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/Archie3d/mesh-responder/pkg/types"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

type TextApplicationIncomingMessage struct {
	Id        string       `json:"id"`
	ChannelId uint32       `json:"channel"`
	From      types.NodeId `json:"from"`
	To        types.NodeId `json:"to"`
	Text      string       `json:"text"`
	Rssi      int32        `json:"rssi"`
	Snr       float32      `json:"snr"`
}

type TextApplicationOutgoingMessage struct {
	ChannelId uint32       `json:"channel"`
	To        types.NodeId `json:"to"`
	Text      string       `json:"text"`
}

// TextApplication bridges text messages to the message bus:
// received texts are published, texts published by others are sent.
type TextApplication struct {
	bus             MessageBus
	messageSink     ApplicationMessageSink
	incomingSubject string
	outgoingSubject string
	subscription    *nats.Subscription
}

func NewTextApplication(config *NodeConfiguration) *TextApplication {
	return &TextApplication{
		incomingSubject: config.NatsSubjectPrefix + ".in.text",
		outgoingSubject: config.NatsSubjectPrefix + ".out.text",
	}
}

func (app *TextApplication) GetPortNum() PortNum {
	return PortNum_TEXT_MESSAGE_APP
}

func (app *TextApplication) Start(bus MessageBus, sink ApplicationMessageSink) error {
	app.bus = bus
	app.messageSink = sink

	sub, err := app.bus.Subscribe(app.outgoingSubject, app.handleOutgoing)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", app.outgoingSubject, err)
	}
	app.subscription = sub

	log.With("in", app.incomingSubject, "out", app.outgoingSubject).Info("Started text message bridge")

	return nil
}

func (app *TextApplication) handleOutgoing(msg *nats.Msg) {
	var textMessage TextApplicationOutgoingMessage

	if err := json.Unmarshal(msg.Data, &textMessage); err != nil {
		log.With("err", err).Warn("Invalid outgoing text message")
		return
	}

	if textMessage.To == 0 {
		textMessage.To = types.BroadcastNodeId
	}

	err := app.messageSink.SendApplicationMessage(
		textMessage.ChannelId,
		textMessage.To,
		app.GetPortNum(),
		[]byte(textMessage.Text),
	)
	if err != nil {
		log.With("err", err).Warn("Failed to send text message from the bus")
	}
}

func (app *TextApplication) Stop() error {
	if app.subscription == nil {
		return nil
	}
	return app.subscription.Unsubscribe()
}

func (app *TextApplication) HandleIncomingPacket(meshPacket *MeshPacket) error {
	if meshPacket.Decoded == nil {
		return fmt.Errorf("invalid message format")
	}

	if !utf8.Valid(meshPacket.Decoded.Payload) {
		return fmt.Errorf("text message from %s is not valid UTF-8", meshPacket.From)
	}

	if app.bus == nil {
		return nil
	}

	j, err := json.Marshal(&TextApplicationIncomingMessage{
		Id:        uuid.NewString(),
		ChannelId: meshPacket.Channel,
		From:      meshPacket.From,
		To:        meshPacket.To,
		Text:      string(meshPacket.Decoded.Payload),
		Rssi:      meshPacket.RxRssi,
		Snr:       meshPacket.RxSnr,
	})
	if err != nil {
		return err
	}

	return app.bus.Publish(app.incomingSubject, j)
}
