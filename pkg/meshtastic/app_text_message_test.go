package meshtastic

import (
	"encoding/json"
	"testing"

	"github.com/Archie3d/mesh-responder/pkg/types"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakeBus struct {
	published []published
	handlers  map[string]nats.MsgHandler
}

func (b *fakeBus) Publish(subject string, data []byte) error {
	b.published = append(b.published, published{subject, data})
	return nil
}

func (b *fakeBus) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	if b.handlers == nil {
		b.handlers = map[string]nats.MsgHandler{}
	}
	b.handlers[subject] = cb
	return nil, nil
}

type sentMessage struct {
	channelId   uint32
	destination types.NodeId
	portNum     PortNum
	payload     []byte
}

type fakeSink struct {
	sent []sentMessage
}

func (s *fakeSink) SendApplicationMessage(channelId uint32, destination types.NodeId, portNum PortNum, payload []byte) error {
	s.sent = append(s.sent, sentMessage{channelId, destination, portNum, payload})
	return nil
}

func startTextApp(t *testing.T) (*TextApplication, *fakeBus, *fakeSink) {
	t.Helper()

	bus := &fakeBus{}
	sink := &fakeSink{}

	app := NewTextApplication(testConfig())
	require.NoError(t, app.Start(bus, sink))
	t.Cleanup(func() { assert.NoError(t, app.Stop()) })

	return app, bus, sink
}

func TestTextApplicationPublishesIncoming(t *testing.T) {
	app, bus, _ := startTextApp(t)

	err := app.HandleIncomingPacket(&MeshPacket{
		From:    remoteNode,
		To:      types.BroadcastNodeId,
		Channel: 1,
		RxRssi:  -70,
		Decoded: &Data{Portnum: PortNum_TEXT_MESSAGE_APP, Payload: []byte("please PING now")},
	})
	require.NoError(t, err)

	require.Len(t, bus.published, 1)
	assert.Equal(t, "mesh.in.text", bus.published[0].subject)

	var msg TextApplicationIncomingMessage
	require.NoError(t, json.Unmarshal(bus.published[0].data, &msg))

	assert.NotEmpty(t, msg.Id)
	assert.Equal(t, remoteNode, msg.From)
	assert.Equal(t, types.BroadcastNodeId, msg.To)
	assert.Equal(t, uint32(1), msg.ChannelId)
	assert.Equal(t, int32(-70), msg.Rssi)
	assert.Equal(t, "please PING now", msg.Text)
}

func TestTextApplicationRejectsInvalidText(t *testing.T) {
	app, bus, _ := startTextApp(t)

	assert.Error(t, app.HandleIncomingPacket(&MeshPacket{}))
	assert.Error(t, app.HandleIncomingPacket(&MeshPacket{
		Decoded: &Data{Portnum: PortNum_TEXT_MESSAGE_APP, Payload: []byte{0xFF, 0xFE}},
	}))
	assert.Empty(t, bus.published)
}

func TestTextApplicationSendsOutgoing(t *testing.T) {
	_, bus, sink := startTextApp(t)

	handler := bus.handlers["mesh.out.text"]
	require.NotNil(t, handler)

	handler(&nats.Msg{Data: []byte(`{"channel": 1, "text": "hello mesh"}`)})
	handler(&nats.Msg{Data: []byte(`{"channel": 0, "to": "!433c74c0", "text": "direct"}`)})
	handler(&nats.Msg{Data: []byte(`not json`)})

	require.Len(t, sink.sent, 2)

	assert.Equal(t, uint32(1), sink.sent[0].channelId)
	assert.Equal(t, types.BroadcastNodeId, sink.sent[0].destination)
	assert.Equal(t, PortNum_TEXT_MESSAGE_APP, sink.sent[0].portNum)
	assert.Equal(t, []byte("hello mesh"), sink.sent[0].payload)

	assert.Equal(t, remoteNode, sink.sent[1].destination)
	assert.Equal(t, []byte("direct"), sink.sent[1].payload)
}
