// Package radio connects the responder to a mesh node.
package radio

import (
	"github.com/Archie3d/mesh-responder/pkg/meshtastic"
	"github.com/Archie3d/mesh-responder/pkg/responder"
	"github.com/Archie3d/mesh-responder/pkg/types"
)

// Node is the part of *meshtastic.Node the adapter uses.
type Node interface {
	Subscribe(handler meshtastic.PacketHandler)
	SendText(channelId uint32, toNode types.NodeId, text string) error
}

// MeshChannel broadcasts replies on a single mesh channel and reports
// every packet the node hears.
type MeshChannel struct {
	node      Node
	channelId uint32
}

func NewMeshChannel(node Node, channelId uint32) *MeshChannel {
	return &MeshChannel{
		node:      node,
		channelId: channelId,
	}
}

func (c *MeshChannel) Subscribe(handler func(event responder.InboundEvent)) {
	c.node.Subscribe(func(p *meshtastic.MeshPacket) {
		handler(EventFromPacket(p))
	})
}

func (c *MeshChannel) SendText(text string) error {
	return c.node.SendText(c.channelId, types.BroadcastNodeId, text)
}

// EventFromPacket converts a received packet.
func EventFromPacket(p *meshtastic.MeshPacket) responder.InboundEvent {
	event := responder.InboundEvent{
		From:     uint32(p.From),
		To:       uint32(p.To),
		Channel:  p.Channel,
		PacketId: p.Id,
	}

	if p.Decoded != nil {
		event.Decoded = &responder.Decoded{
			PortNum: p.Decoded.Portnum.String(),
			Payload: p.Decoded.Payload,
		}
	}

	return event
}
