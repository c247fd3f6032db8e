package meshtastic

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Archie3d/mesh-responder/pkg/client"
	"github.com/Archie3d/mesh-responder/pkg/event_loop"
	"github.com/Archie3d/mesh-responder/pkg/types"
	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

// Largest application payload the firmware accepts.
const MaxPayloadSize = 233

// PacketHandler receives every packet heard by the node. Packets no
// configured channel could decode have a nil Decoded field.
type PacketHandler func(meshPacket *MeshPacket)

type Node struct {
	config *NodeConfiguration

	channels []*Channel

	natsConn *nats.Conn

	serialPortName   string
	meshtasticClient *MeshtasticClient
	packetIds        *types.PacketIdGenerator

	applications []Application

	subscribersMutex sync.RWMutex
	subscribers      []PacketHandler

	eventLoop event_loop.EventLoop

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewNode(port string, config *NodeConfiguration, opener client.PortOpener) *Node {
	node := &Node{
		config:           config,
		serialPortName:   port,
		meshtasticClient: NewMeshtasticClient(opener, config.DedupWindow.Std()),
		packetIds:        types.NewPacketIdGenerator(64),
		eventLoop:        event_loop.NewEventLoop(),
	}

	for _, ch := range config.Channels {
		node.channels = append(node.channels, NewChannel(ch.Id, ch.Name, ch.EncryptionKey))
	}

	return node
}

func (n *Node) Id() types.NodeId {
	return n.config.Id
}

func (n *Node) AddApplication(app Application) {
	n.applications = append(n.applications, app)
}

// Subscribe registers a handler for received packets. Handlers are
// called one at a time from the node event loop.
func (n *Node) Subscribe(handler PacketHandler) {
	n.subscribersMutex.Lock()
	defer n.subscribersMutex.Unlock()

	n.subscribers = append(n.subscribers, handler)
}

func (n *Node) Start() error {
	if err := n.meshtasticClient.Open(n.serialPortName, &n.config.Radio); err != nil {
		return err
	}

	if n.config.NatsUrl != "" {
		nc, err := nats.Connect(n.config.NatsUrl, nats.Name("mesh-responder "+n.config.Id.String()))
		if err != nil {
			n.meshtasticClient.Close()
			return fmt.Errorf("connect to NATS %s: %w", n.config.NatsUrl, err)
		}
		n.natsConn = nc
	}

	n.ctx, n.cancel = context.WithCancel(context.Background())

	n.wg.Go(func() {
		for {
			select {
			case <-n.ctx.Done():
				return
			case packet := <-n.meshtasticClient.IncomingPackets:
				n.handleIncomingPacket(packet)
			case err := <-n.meshtasticClient.Errors:
				log.With("err", err).Warn("Radio error")
			}
		}
	})

	n.wg.Go(n.eventLoop.Run)

	if n.natsConn != nil {
		for _, app := range n.applications {
			if err := app.Start(n.natsConn, n); err != nil {
				n.Stop()
				return err
			}
		}
	}

	log.With(
		"id", n.config.Id,
		"port", n.serialPortName,
		"channels", len(n.channels),
	).Info("Node started")

	return nil
}

func (n *Node) Stop() error {
	if n.cancel == nil {
		return nil
	}

	if n.natsConn != nil {
		for _, app := range n.applications {
			if err := app.Stop(); err != nil {
				log.With("err", err).Warn("Failed to stop application")
			}
		}
		n.natsConn.Close()
	}

	n.eventLoop.Quit()
	n.cancel()
	n.wg.Wait()
	n.cancel = nil

	return n.meshtasticClient.Close()
}

func (n *Node) GetChannel(channelId uint32) *Channel {
	for _, ch := range n.channels {
		if ch.id == channelId {
			return ch
		}
	}
	return nil
}

// SendText broadcasts or sends a text message on a channel.
func (n *Node) SendText(channelId uint32, toNode types.NodeId, text string) error {
	return n.SendApplicationMessage(channelId, toNode, PortNum_TEXT_MESSAGE_APP, []byte(text))
}

// ApplicationMessageSink interface
func (n *Node) SendApplicationMessage(channelId uint32, destination types.NodeId, portNum PortNum, payload []byte) error {
	channel := n.GetChannel(channelId)
	if channel == nil {
		return fmt.Errorf("node does not have channel id %d", channelId)
	}

	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("payload of %d bytes exceeds %d", len(payload), MaxPayloadSize)
	}

	meshPacket := MeshPacket{
		From:     n.config.Id,
		To:       destination,
		Id:       n.packetIds.GetNext(),
		HopStart: n.config.HopLimit,
		HopLimit: n.config.HopLimit,
		Decoded: &Data{
			Portnum: portNum,
			Payload: payload,
		},
	}

	data, err := channel.EncodePacket(&meshPacket)
	if err != nil {
		return err
	}

	if err := n.enqueue(data); err != nil {
		return err
	}

	log.With(
		"id", fmt.Sprintf("%08x", meshPacket.Id),
		"to", destination,
		"channel", channelId,
		"port", portNum,
	).Debug("Packet queued")

	// Blind repeats share the packet id, receivers drop the duplicates
	now := time.Now()
	for _, delay := range n.config.RepeatDelays {
		n.eventLoop.Post(func(el event_loop.EventLoop) {
			if err := n.enqueue(data); err != nil {
				log.With("err", err).Warn("Repeat dropped")
			}
		}, now.Add(delay.Std()))
	}

	return nil
}

func (n *Node) enqueue(data []byte) error {
	select {
	case n.meshtasticClient.OutgoingPackets <- data:
		return nil
	default:
		return fmt.Errorf("transmit queue is full")
	}
}

// decodePacket tries every channel with a matching hash. The returned
// packet has Decoded set to nil if none of them could decode it.
func (n *Node) decodePacket(packet *client.PacketReceived) (*MeshPacket, error) {
	for _, channel := range n.channels {
		meshPacket, err := channel.DecodePacket(packet)
		if err == nil {
			return meshPacket, nil
		}
	}

	meshPacket, err := parseHeader(packet.Data)
	if err != nil {
		return nil, err
	}

	meshPacket.RxRssi = int32(packet.PacketRSSI_dBm)
	meshPacket.RxSnr = float32(packet.PacketSNR_dB)

	return meshPacket, nil
}

func (n *Node) handleIncomingPacket(packet *client.PacketReceived) {
	meshPacket, err := n.decodePacket(packet)
	if err != nil {
		log.With("err", err, "data", hex.EncodeToString(packet.Data)).Debug("Dropping unparseable packet")
		return
	}

	if meshPacket.From == n.config.Id {
		// Our own packet relayed back
		return
	}

	log.With(
		"from", meshPacket.From,
		"to", meshPacket.To,
		"decoded", meshPacket.Decoded != nil,
		"rssi", meshPacket.RxRssi,
		"snr", meshPacket.RxSnr,
	).Debug("Packet received")

	n.eventLoop.Put(func(el event_loop.EventLoop) {
		n.dispatch(meshPacket)
	})

	if n.config.Rebroadcast && meshPacket.To != n.config.Id {
		n.rebroadcast(packet.Data)
	}
}

func (n *Node) dispatch(meshPacket *MeshPacket) {
	if meshPacket.Decoded != nil && n.natsConn != nil {
		for _, app := range n.applications {
			if app.GetPortNum() != meshPacket.Decoded.Portnum {
				continue
			}
			if err := app.HandleIncomingPacket(meshPacket); err != nil {
				log.With("err", err).Warn("Application failed to handle packet")
			}
		}
	}

	n.subscribersMutex.RLock()
	subscribers := append([]PacketHandler(nil), n.subscribers...)
	n.subscribersMutex.RUnlock()

	for _, handler := range subscribers {
		handler(meshPacket)
	}
}

// rebroadcast relays a packet addressed to someone else with the hop
// limit decremented, after a short random delay to let closer nodes go first.
func (n *Node) rebroadcast(original []byte) {
	data := append([]byte(nil), original...)

	hopLimit := data[12] & flagHopLimitMask
	if hopLimit == 0 {
		return
	}

	data[12] = (data[12] &^ flagHopLimitMask) | (hopLimit - 1)
	data[15] = byte(n.config.Id & 0xFF)

	delay := time.Second + time.Duration(rand.IntN(1000))*time.Millisecond

	n.eventLoop.Post(func(el event_loop.EventLoop) {
		if err := n.enqueue(data); err != nil {
			log.With("err", err).Warn("Rebroadcast dropped")
		}
	}, time.Now().Add(delay))
}
