package alloc

import (
	"errors"
	"fmt"
	"math"

	"github.com/joshuapare/memkit/internal/arena"
	"github.com/joshuapare/memkit/tracker"
)

// endOfList terminates a block's free list.
const endOfList = -1

type poolSlot struct {
	free bool
	next int32 // next free slot in the same block, or endOfList
}

type poolBlock struct {
	arena *arena.Arena
	slots []poolSlot
	head  int32 // first free slot, or endOfList when full
	used  int
}

// PoolAllocator hands out fixed-size slots. It starts with one block of
// slotsPerBlock slots and appends another block whenever every slot is taken.
//
// Each block threads its free slots through an intrusive list so Request and
// Free are O(blocks) in the worst case and O(1) when the first block has room.
// Slot addresses never move while the allocator is open.
//
// PoolAllocator is not safe for concurrent use.
type PoolAllocator struct {
	base

	blocks []*poolBlock

	slotsPerBlock int
	slotSize      int
	aligned       bool
	backing       Backing
}

// Compile-time interface check
var _ Allocator = (*PoolAllocator)(nil)

// NewPool returns an initialized PoolAllocator.
func NewPool(slotsPerBlock, slotSize int, aligned bool, opts *Options) (*PoolAllocator, error) {
	p := &PoolAllocator{}
	if err := p.Init(slotsPerBlock, slotSize, aligned, opts); err != nil {
		return nil, err
	}
	return p, nil
}

// Init creates the first block. When aligned is true every block starts on a
// slotSize boundary.
func (p *PoolAllocator) Init(slotsPerBlock, slotSize int, aligned bool, opts *Options) error {
	if p.ready {
		return ErrInitialized
	}
	o := resolve(opts)
	p.prepare(tracker.KindPool, o)

	var err error
	switch {
	case slotsPerBlock <= 0 || slotSize <= 0:
		err = fmt.Errorf("%w: %d slots of %d bytes", ErrInvalidSize, slotsPerBlock, slotSize)
	case slotsPerBlock > math.MaxInt32:
		err = fmt.Errorf("%w: %d slots per block", ErrSizeTooLarge, slotsPerBlock)
	default:
		if n, ok := arena.MulOverflowSafe(slotsPerBlock, slotSize); !ok || n > arena.MaxSize {
			err = fmt.Errorf("%w: %d slots of %d bytes", ErrSizeTooLarge, slotsPerBlock, slotSize)
		}
	}
	if err != nil {
		p.log.Warn("pool init rejected", "slots", slotsPerBlock, "slot_size", slotSize, "err", err)
		return err
	}

	p.slotsPerBlock = slotsPerBlock
	p.slotSize = slotSize
	p.aligned = aligned
	p.backing = o.Backing

	blk, err := p.newBlock()
	if err != nil {
		p.slotsPerBlock, p.slotSize, p.aligned, p.backing = 0, 0, false, 0
		return fmt.Errorf("alloc: pool arena: %w", err)
	}
	p.blocks = []*poolBlock{blk}
	p.setup(tracker.KindPool, o)
	p.publish(p.Stats())
	return nil
}

func (p *PoolAllocator) newBlock() (*poolBlock, error) {
	align := 1
	if p.aligned {
		align = p.slotSize
	}
	a, err := arena.New(p.slotsPerBlock*p.slotSize, align, p.backing)
	if err != nil {
		return nil, err
	}
	slots := make([]poolSlot, p.slotsPerBlock)
	for i := range slots {
		slots[i] = poolSlot{free: true, next: int32(i + 1)}
	}
	slots[len(slots)-1].next = endOfList
	return &poolBlock{arena: a, slots: slots}, nil
}

// Kind returns tracker.KindPool.
func (p *PoolAllocator) Kind() tracker.Kind { return tracker.KindPool }

// Request takes one slot. size only bounds the request: 0 asks for a slot
// of any use, and sizes above SlotSize are rejected.
func (p *PoolAllocator) Request(size int, tag string) (Addr, error) {
	if !p.ready {
		return NilAddr, ErrUninitialized
	}
	switch {
	case size < 0:
		return NilAddr, p.fail("request", ErrInvalidSize, "size", size)
	case size > p.slotSize:
		return NilAddr, p.fail("request", ErrSizeTooLarge, "size", size, "slot_size", p.slotSize)
	}

	for _, blk := range p.blocks {
		if blk.head != endOfList {
			return p.take(blk, tag), nil
		}
	}

	blk, err := p.newBlock()
	if err != nil {
		return NilAddr, p.fail("request", fmt.Errorf("%w: %w", ErrGrowFail, err), "blocks", len(p.blocks))
	}
	p.blocks = append(p.blocks, blk)
	p.log.Debug("pool grew", "id", p.id, "blocks", len(p.blocks))
	return p.take(blk, tag), nil
}

func (p *PoolAllocator) take(blk *poolBlock, tag string) Addr {
	idx := blk.head
	s := &blk.slots[idx]
	blk.head = s.next
	s.free = false
	s.next = endOfList
	blk.used++

	addr := Addr(blk.arena.Addr(int(idx) * p.slotSize))
	p.track(addr, p.slotSize, tag)
	p.publish(p.Stats())
	return addr
}

// Free returns the slot starting at addr to its block's free list.
func (p *PoolAllocator) Free(addr Addr) error {
	if !p.ready {
		return ErrUninitialized
	}
	if addr == NilAddr {
		return p.fail("free", ErrNilAddr)
	}
	blk, idx, err := p.locate(addr)
	if err != nil {
		return p.fail("free", err, "addr", addr)
	}
	s := &blk.slots[idx]
	if s.free {
		return p.fail("free", ErrDoubleFree, "addr", addr)
	}
	s.free = true
	s.next = blk.head
	blk.head = int32(idx)
	blk.used--

	p.untrack(addr)
	p.publish(p.Stats())
	return nil
}

// locate maps addr to its block and slot index.
func (p *PoolAllocator) locate(addr Addr) (*poolBlock, int, error) {
	for _, blk := range p.blocks {
		off, ok := blk.arena.Offset(uintptr(addr))
		if !ok {
			continue
		}
		if off%p.slotSize != 0 {
			return nil, 0, ErrMisaligned
		}
		return blk, off / p.slotSize, nil
	}
	return nil, 0, ErrNotOwned
}

// Bytes returns the slot starting at addr. The slot must be in use.
func (p *PoolAllocator) Bytes(addr Addr) ([]byte, error) {
	if !p.ready {
		return nil, ErrUninitialized
	}
	if addr == NilAddr {
		return nil, ErrNilAddr
	}
	blk, idx, err := p.locate(addr)
	if err != nil {
		return nil, err
	}
	if blk.slots[idx].free {
		return nil, ErrNotAllocated
	}
	buf, _ := blk.arena.Slice(uintptr(addr), p.slotSize)
	return buf, nil
}

// Stats reports the capacity of all blocks and the bytes in used slots.
func (p *PoolAllocator) Stats() tracker.Stats {
	used := 0
	for _, blk := range p.blocks {
		used += blk.used
	}
	return tracker.PoolStats{
		Usage: tracker.Usage{
			Capacity:  uint64(p.slotsPerBlock) * uint64(p.slotSize) * uint64(len(p.blocks)),
			UsedBytes: uint64(used) * uint64(p.slotSize),
		},
		NumBlocks: len(p.blocks),
	}
}

// NumSlots returns the total number of slots across all blocks.
func (p *PoolAllocator) NumSlots() int { return p.slotsPerBlock * len(p.blocks) }

// NumBlocks returns the number of blocks.
func (p *PoolAllocator) NumBlocks() int { return len(p.blocks) }

// SlotSize returns the slot size in bytes.
func (p *PoolAllocator) SlotSize() int { return p.slotSize }

// SlotUsed reports whether the slot with the given global index is in use.
// Slots are numbered block by block.
func (p *PoolAllocator) SlotUsed(index int) (bool, error) {
	if !p.ready {
		return false, ErrUninitialized
	}
	if index < 0 || index >= p.NumSlots() {
		return false, ErrOutOfRange
	}
	blk := p.blocks[index/p.slotsPerBlock]
	return !blk.slots[index%p.slotsPerBlock].free, nil
}

// BlockBase returns the address of the first slot of block i.
func (p *PoolAllocator) BlockBase(i int) (Addr, error) {
	if !p.ready {
		return NilAddr, ErrUninitialized
	}
	if i < 0 || i >= len(p.blocks) {
		return NilAddr, ErrOutOfRange
	}
	return Addr(p.blocks[i].arena.Base()), nil
}

// Close releases every block and evicts the allocator and its records from
// the registry. Close on an uninitialized allocator is a no-op.
func (p *PoolAllocator) Close() error {
	if !p.ready {
		return nil
	}
	var errs []error
	for _, blk := range p.blocks {
		if err := blk.arena.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	p.teardown()
	p.blocks = nil
	p.slotsPerBlock, p.slotSize, p.aligned, p.backing = 0, 0, false, 0
	return errors.Join(errs...)
}
