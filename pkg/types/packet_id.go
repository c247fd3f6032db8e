package types

import (
	"math/rand/v2"
	"slices"
	"sync"
)

// PacketIdGenerator hands out random non-zero packet ids that do not
// repeat any of the last n ids.
type PacketIdGenerator struct {
	mutex sync.Mutex
	prev  []uint32
	index int
}

func NewPacketIdGenerator(n uint) *PacketIdGenerator {
	if n == 0 {
		n = 1
	}

	return &PacketIdGenerator{
		prev: make([]uint32, n),
	}
}

func (p *PacketIdGenerator) GetNext() uint32 {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	v := rand.Uint32()
	for v == 0 || slices.Contains(p.prev, v) {
		v = rand.Uint32()
	}

	p.prev[p.index] = v
	p.index = (p.index + 1) % len(p.prev)

	return v
}
