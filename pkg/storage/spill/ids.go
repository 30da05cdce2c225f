package spill

import (
	"fmt"
	"sync/atomic"
)

// IDGenerator hands out monotonically increasing run numbers. Each query
// context owns exactly one.
type IDGenerator struct {
	next atomic.Uint64
}

// Next returns the next id, starting at 1.
func (g *IDGenerator) Next() uint64 {
	return g.next.Add(1)
}

// Name returns "<prefix>-<id>" using the next id.
func (g *IDGenerator) Name(prefix string) string {
	return fmt.Sprintf("%s-%06d", prefix, g.Next())
}
