package alloc

import (
	"fmt"
	"io"
	"math/bits"
	"strings"

	"github.com/joshuapare/memkit/internal/arena"
	"github.com/joshuapare/memkit/tracker"
)

const (
	// MinBuddyBlock is the smallest block a BuddyAllocator hands out.
	MinBuddyBlock = 32

	// MaxBuddyCapacity bounds the node tree to a size that fits comfortably in memory.
	MaxBuddyCapacity = 1 << 30

	minBuddyShift = 5
)

// NodeState is the state of one node in the buddy tree.
type NodeState uint8

const (
	// NodeFree marks a block with its whole subtree available.
	NodeFree NodeState = iota
	// NodeUsed marks a block handed out by Request.
	NodeUsed
	// NodeSplit marks a block divided into two children.
	NodeSplit
)

func (s NodeState) String() string {
	switch s {
	case NodeFree:
		return "F"
	case NodeUsed:
		return "U"
	case NodeSplit:
		return "S"
	default:
		return "?"
	}
}

// BuddyNode describes one block of the buddy tree.
type BuddyNode struct {
	Size   int
	Offset int
	State  NodeState
}

// BuddyAllocator hands out power-of-two blocks carved from one arena.
//
// Blocks are kept in a complete binary tree stored flat: the children of
// node i are 2i+1 and 2i+2, and level L starts at index 2^L-1. The leaves
// are MinBuddyBlock bytes.
//
// Invariants:
//   - A Free node has an entirely Free subtree.
//   - A Split node has at least one non-Free child once the operation that
//     split it returns, except transiently inside Request.
//   - used equals the sum of the sizes of all Used nodes.
//
// BuddyAllocator is not safe for concurrent use.
type BuddyAllocator struct {
	base

	arena *arena.Arena
	nodes []BuddyNode

	capacity int
	used     int
	shift    int // log2(capacity)
}

// Compile-time interface check
var _ Allocator = (*BuddyAllocator)(nil)

// NewBuddy returns an initialized BuddyAllocator.
func NewBuddy(capacity int, opts *Options) (*BuddyAllocator, error) {
	b := &BuddyAllocator{}
	if err := b.Init(capacity, opts); err != nil {
		return nil, err
	}
	return b, nil
}

// Init acquires a capacity-byte arena and builds the node tree.
//
// capacity must be a power of two between MinBuddyBlock and MaxBuddyCapacity.
// On failure nothing is acquired and the allocator stays uninitialized.
func (b *BuddyAllocator) Init(capacity int, opts *Options) error {
	if b.ready {
		return ErrInitialized
	}
	o := resolve(opts)
	b.prepare(tracker.KindBuddy, o)

	var err error
	switch {
	case capacity < MinBuddyBlock:
		err = fmt.Errorf("%w: %d < %d", ErrCapacityTooSmall, capacity, MinBuddyBlock)
	case bits.OnesCount(uint(capacity)) != 1:
		err = fmt.Errorf("%w: %d", ErrNotPowerOfTwo, capacity)
	case capacity > MaxBuddyCapacity:
		err = fmt.Errorf("%w: capacity %d > %d", ErrSizeTooLarge, capacity, MaxBuddyCapacity)
	}
	if err != nil {
		b.log.Warn("buddy init rejected", "capacity", capacity, "err", err)
		return err
	}

	a, err := arena.New(capacity, 1, o.Backing)
	if err != nil {
		return fmt.Errorf("alloc: buddy arena: %w", err)
	}

	shift := bits.TrailingZeros(uint(capacity))
	levels := shift - minBuddyShift + 1
	nodes := make([]BuddyNode, 1<<levels-1)
	i := 0
	for level := range levels {
		size := capacity >> level
		for k := range 1 << level {
			nodes[i] = BuddyNode{Size: size, Offset: k * size}
			i++
		}
	}

	b.arena = a
	b.nodes = nodes
	b.capacity = capacity
	b.used = 0
	b.shift = shift
	b.setup(tracker.KindBuddy, o)
	b.publish(b.Stats())
	return nil
}

// Kind returns tracker.KindBuddy.
func (b *BuddyAllocator) Kind() tracker.Kind { return tracker.KindBuddy }

// Request returns the start of a free block of max(MinBuddyBlock, nextPow2(size))
// bytes, splitting larger blocks as needed. The leftmost fitting block wins.
func (b *BuddyAllocator) Request(size int, tag string) (Addr, error) {
	if !b.ready {
		return NilAddr, ErrUninitialized
	}
	switch {
	case size <= 0:
		return NilAddr, b.fail("request", ErrInvalidSize, "size", size)
	case size > b.capacity:
		return NilAddr, b.fail("request", ErrSizeTooLarge, "size", size, "capacity", b.capacity)
	case size > b.capacity-b.used:
		return NilAddr, b.fail("request", ErrNoSpace, "size", size, "free", b.capacity-b.used)
	}

	// Pre-order walk over the levels that can hold the request.
	limit := 1<<(b.levelFor(size)+1) - 1
	for i := 0; i < limit; {
		n := &b.nodes[i]
		switch n.State {
		case NodeFree:
			if size > n.Size/2 || n.Size == MinBuddyBlock {
				n.State = NodeUsed
				b.used += n.Size
				addr := Addr(b.arena.Addr(n.Offset))
				b.track(addr, n.Size, tag)
				b.publish(b.Stats())
				return addr, nil
			}
			n.State = NodeSplit
			i = 2*i + 1
			continue
		case NodeSplit:
			if size <= n.Size/2 {
				i = 2*i + 1
				continue
			}
		}

		next, ok := nextPreorder(i)
		if !ok {
			break
		}
		i = next
	}
	return NilAddr, b.fail("request", ErrNoSpace, "size", size, "free", b.capacity-b.used)
}

// levelFor returns the tree level whose blocks fit size exactly.
func (b *BuddyAllocator) levelFor(size int) int {
	shift := max(minBuddyShift, bits.Len(uint(size-1)))
	return b.shift - shift
}

// nextPreorder skips the subtree rooted at i. It walks up while i is a right
// child and then steps to the right sibling. ok is false once the walk
// returns to the root.
func nextPreorder(i int) (int, bool) {
	for i > 0 && i%2 == 0 {
		i = (i - 1) / 2
	}
	if i == 0 {
		return 0, false
	}
	return i + 1, true
}

// Free releases the Used block starting at addr and merges Free buddies
// upward for as long as possible.
func (b *BuddyAllocator) Free(addr Addr) error {
	if !b.ready {
		return ErrUninitialized
	}
	if addr == NilAddr {
		return b.fail("free", ErrNilAddr)
	}
	off, ok := b.arena.Offset(uintptr(addr))
	if !ok {
		return b.fail("free", ErrOutOfRange, "addr", addr)
	}
	i := b.findUsed(off)
	if i < 0 {
		return b.fail("free", ErrNotAllocated, "addr", addr)
	}

	b.nodes[i].State = NodeFree
	b.used -= b.nodes[i].Size
	b.untrack(addr)
	b.coalesce(i)
	b.publish(b.Stats())
	return nil
}

// findUsed returns the index of the Used node starting at off, or -1.
// It descends one level at a time, visiting only the node aligned to off.
func (b *BuddyAllocator) findUsed(off int) int {
	for level, first := 0, 0; first < len(b.nodes); level, first = level+1, 2*first+1 {
		size := b.capacity >> level
		if off%size != 0 {
			continue
		}
		i := first + off/size
		switch b.nodes[i].State {
		case NodeUsed:
			return i
		case NodeFree:
			return -1
		}
	}
	return -1
}

func (b *BuddyAllocator) coalesce(i int) {
	for i > 0 {
		buddy := i + 1
		if i%2 == 0 {
			buddy = i - 1
		}
		if b.nodes[buddy].State != NodeFree {
			return
		}
		i = (i - 1) / 2
		b.nodes[i].State = NodeFree
	}
}

// Bytes returns the whole Used block starting at addr.
func (b *BuddyAllocator) Bytes(addr Addr) ([]byte, error) {
	if !b.ready {
		return nil, ErrUninitialized
	}
	if addr == NilAddr {
		return nil, ErrNilAddr
	}
	off, ok := b.arena.Offset(uintptr(addr))
	if !ok {
		return nil, ErrOutOfRange
	}
	i := b.findUsed(off)
	if i < 0 {
		return nil, ErrNotAllocated
	}
	buf, _ := b.arena.Slice(uintptr(addr), b.nodes[i].Size)
	return buf, nil
}

// Stats reports capacity and the bytes held by Used blocks.
func (b *BuddyAllocator) Stats() tracker.Stats {
	return tracker.BuddyStats{Usage: tracker.Usage{
		Capacity:  uint64(b.capacity),
		UsedBytes: uint64(b.used),
	}}
}

// Base returns the address of the first byte of the arena, or NilAddr when
// uninitialized.
func (b *BuddyAllocator) Base() Addr {
	if !b.ready {
		return NilAddr
	}
	return Addr(b.arena.Base())
}

// Capacity returns the arena size in bytes.
func (b *BuddyAllocator) Capacity() int { return b.capacity }

// Nodes returns a copy of the node tree in index order.
func (b *BuddyAllocator) Nodes() []BuddyNode {
	out := make([]BuddyNode, len(b.nodes))
	copy(out, b.nodes)
	return out
}

// WriteStates writes one line per tree level listing node states, e.g.
//
//	L0 S
//	L1 U F
func (b *BuddyAllocator) WriteStates(w io.Writer) error {
	if !b.ready {
		return ErrUninitialized
	}
	var sb strings.Builder
	for level, first := 0, 0; first < len(b.nodes); level, first = level+1, 2*first+1 {
		fmt.Fprintf(&sb, "L%d", level)
		for _, n := range b.nodes[first : 2*first+1] {
			sb.WriteByte(' ')
			sb.WriteString(n.State.String())
		}
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// Close releases the arena and evicts the allocator and its records from
// the registry. Close on an uninitialized allocator is a no-op.
func (b *BuddyAllocator) Close() error {
	if !b.ready {
		return nil
	}
	err := b.arena.Release()
	b.teardown()
	b.arena = nil
	b.nodes = nil
	b.capacity, b.used, b.shift = 0, 0, 0
	return err
}
