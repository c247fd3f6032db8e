package meshtastic

import (
	"github.com/Archie3d/mesh-responder/pkg/types"
	"github.com/nats-io/nats.go"
)

type ApplicationMessageSink interface {
	SendApplicationMessage(channelId uint32, destination types.NodeId, portNum PortNum, payload []byte) error
}

// MessageBus is the part of *nats.Conn the applications use.
type MessageBus interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

type Application interface {
	GetPortNum() PortNum
	Start(bus MessageBus, sink ApplicationMessageSink) error
	Stop() error
	HandleIncomingPacket(meshPacket *MeshPacket) error
}
