package types

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// NodeId is a 32-bit Meshtastic node number.
type NodeId uint32

// BroadcastNodeId addresses every node on the mesh.
const BroadcastNodeId NodeId = 0xFFFFFFFF

// ParseNodeId accepts the hex form with or without the "!" prefix
// used by Meshtastic clients, e.g. "!433c74c0" or "433c74c0".
func ParseNodeId(s string) (NodeId, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "!")

	value, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid node id %q: %w", s, err)
	}

	return NodeId(value), nil
}

func (n NodeId) MarshalYAML() (any, error) {
	return n.String(), nil
}

func (n *NodeId) UnmarshalYAML(node *yaml.Node) error {
	id, err := ParseNodeId(node.Value)
	if err != nil {
		return err
	}

	*n = id
	return nil
}

func (n NodeId) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("\"%08x\"", uint32(n))), nil
}

func (n *NodeId) UnmarshalJSON(data []byte) error {
	value := string(data)
	if len(value) > 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = value[1 : len(value)-1]
	}

	id, err := ParseNodeId(value)
	if err != nil {
		return err
	}

	*n = id
	return nil
}

func (n NodeId) IsBroadcast() bool {
	return n == BroadcastNodeId
}

func (n NodeId) String() string {
	return fmt.Sprintf("!%08x", uint32(n))
}
