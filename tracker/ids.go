package tracker

import "sync"

// IDGenerator hands out allocator ids, monotonically increasing per Kind.
// The zero value is ready to use.
type IDGenerator struct {
	mu   sync.Mutex
	next map[Kind]int
}

// NewIDGenerator returns an empty generator.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns the next id for kind. The first id of every kind is 0.
func (g *IDGenerator) Next(kind Kind) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next == nil {
		g.next = make(map[Kind]int)
	}
	id := g.next[kind]
	g.next[kind] = id + 1
	return id
}

// Peek returns the id the next call to Next(kind) would return.
func (g *IDGenerator) Peek(kind Kind) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next[kind]
}
