package alloc

import (
	"fmt"

	"github.com/joshuapare/memkit/internal/arena"
	"github.com/joshuapare/memkit/tracker"
)

// defaultMarkerDepth is the initial capacity of the marker stack.
const defaultMarkerDepth = 64

// StackAllocator is a bump-pointer allocator over one arena with strict
// LIFO release.
//
// Key characteristics:
//   - O(1) Request: the head moves forward by size, no headers, no padding
//   - O(1) Free: only the most recent allocation can be released
//   - Reset releases everything at once, typically at the end of a frame
//
// Each Request pushes its size onto a marker stack; Free pops it and moves
// the head back. head always equals the sum of the markers.
//
// StackAllocator is not safe for concurrent use.
type StackAllocator struct {
	base

	arena *arena.Arena

	// head is the offset of the next allocation.
	head int

	// markers holds the size of every outstanding allocation, oldest first.
	markers []int
}

// Compile-time interface check
var _ Allocator = (*StackAllocator)(nil)

// NewStack returns an initialized StackAllocator.
func NewStack(capacity int, opts *Options) (*StackAllocator, error) {
	s := &StackAllocator{}
	if err := s.Init(capacity, opts); err != nil {
		return nil, err
	}
	return s, nil
}

// Init acquires a capacity-byte arena.
func (s *StackAllocator) Init(capacity int, opts *Options) error {
	if s.ready {
		return ErrInitialized
	}
	o := resolve(opts)
	s.prepare(tracker.KindStack, o)

	if capacity <= 0 {
		err := fmt.Errorf("%w: capacity %d", ErrInvalidSize, capacity)
		s.log.Warn("stack init rejected", "capacity", capacity, "err", err)
		return err
	}
	a, err := arena.New(capacity, 1, o.Backing)
	if err != nil {
		return fmt.Errorf("alloc: stack arena: %w", err)
	}

	s.arena = a
	s.head = 0
	s.markers = make([]int, 0, defaultMarkerDepth)
	s.setup(tracker.KindStack, o)
	s.publish(s.Stats())
	return nil
}

// Kind returns tracker.KindStack.
func (s *StackAllocator) Kind() tracker.Kind { return tracker.KindStack }

// Request returns the current head and advances it by size bytes.
func (s *StackAllocator) Request(size int, tag string) (Addr, error) {
	if !s.ready {
		return NilAddr, ErrUninitialized
	}
	if size <= 0 {
		return NilAddr, s.fail("request", ErrInvalidSize, "size", size)
	}
	if size > s.arena.Len()-s.head {
		return NilAddr, s.fail("request", ErrNoSpace, "size", size, "free", s.arena.Len()-s.head)
	}

	addr := Addr(s.arena.Addr(s.head))
	s.markers = append(s.markers, size)
	s.head += size
	s.track(addr, size, tag)
	s.publish(s.Stats())
	return addr, nil
}

// Free releases the most recent allocation. addr must be NilAddr or the
// address of that allocation; anything else returns ErrNotTop and leaves the
// stack unchanged.
func (s *StackAllocator) Free(addr Addr) error {
	if !s.ready {
		return ErrUninitialized
	}
	if len(s.markers) == 0 {
		return s.fail("free", ErrEmptyStack)
	}
	top := s.arena.Addr(s.head - s.markers[len(s.markers)-1])
	if addr != NilAddr && addr != Addr(top) {
		return s.fail("free", ErrNotTop, "addr", addr, "top", Addr(top))
	}
	s.pop()
	s.publish(s.Stats())
	return nil
}

// Pop releases the most recent allocation.
func (s *StackAllocator) Pop() error {
	return s.Free(NilAddr)
}

func (s *StackAllocator) pop() {
	last := len(s.markers) - 1
	s.head -= s.markers[last]
	s.markers = s.markers[:last]
	s.untrack(Addr(s.arena.Addr(s.head)))
}

// Reset releases every outstanding allocation.
func (s *StackAllocator) Reset() error {
	if !s.ready {
		return ErrUninitialized
	}
	for len(s.markers) > 0 {
		s.pop()
	}
	s.publish(s.Stats())
	return nil
}

// Bytes returns the outstanding allocation starting at addr.
func (s *StackAllocator) Bytes(addr Addr) ([]byte, error) {
	if !s.ready {
		return nil, ErrUninitialized
	}
	if addr == NilAddr {
		return nil, ErrNilAddr
	}
	target, ok := s.arena.Offset(uintptr(addr))
	if !ok {
		return nil, ErrOutOfRange
	}
	off := s.head
	for i := len(s.markers) - 1; i >= 0 && off > target; i-- {
		off -= s.markers[i]
		if off == target {
			buf, _ := s.arena.Slice(uintptr(addr), s.markers[i])
			return buf, nil
		}
	}
	return nil, ErrNotAllocated
}

// Stats reports capacity and the bytes between the arena start and the head.
func (s *StackAllocator) Stats() tracker.Stats {
	var capacity int
	if s.arena != nil {
		capacity = s.arena.Len()
	}
	return tracker.StackStats{Usage: tracker.Usage{
		Capacity:  uint64(capacity),
		UsedBytes: uint64(s.head),
	}}
}

// Depth returns the number of outstanding allocations.
func (s *StackAllocator) Depth() int { return len(s.markers) }

// Top returns the address of the most recent allocation, or NilAddr.
func (s *StackAllocator) Top() Addr {
	if !s.ready || len(s.markers) == 0 {
		return NilAddr
	}
	return Addr(s.arena.Addr(s.head - s.markers[len(s.markers)-1]))
}

// Base returns the address of the first byte of the arena, or NilAddr when
// uninitialized.
func (s *StackAllocator) Base() Addr {
	if !s.ready {
		return NilAddr
	}
	return Addr(s.arena.Base())
}

// Close releases the arena and evicts the allocator and its records from
// the registry. Close on an uninitialized allocator is a no-op.
func (s *StackAllocator) Close() error {
	if !s.ready {
		return nil
	}
	err := s.arena.Release()
	s.teardown()
	s.arena = nil
	s.head = 0
	s.markers = nil
	return err
}
