package tracker

import (
	"fmt"
	"time"
)

// Addr is the address of a byte inside an allocator arena.
// Zero is never a valid address.
type Addr uintptr

// String formats the address as hex.
func (a Addr) String() string {
	return fmt.Sprintf("0x%x", uintptr(a))
}

// Kind identifies an allocation strategy.
type Kind uint8

const (
	KindStack Kind = iota
	KindPool
	KindBuddy
)

// String returns the lower-case strategy name.
func (k Kind) String() string {
	switch k {
	case KindStack:
		return "stack"
	case KindPool:
		return "pool"
	case KindBuddy:
		return "buddy"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler so kinds render by name in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Kinds lists every known kind in display order.
var Kinds = []Kind{KindStack, KindPool, KindBuddy}

// Usage is the byte accounting shared by every stats variant.
type Usage struct {
	Capacity  uint64 `json:"capacity"`
	UsedBytes uint64 `json:"used_bytes"`
}

// Totals returns u. It is promoted into every stats variant.
func (u Usage) Totals() Usage { return u }

// Free returns the number of unused bytes.
func (u Usage) Free() uint64 {
	if u.UsedBytes > u.Capacity {
		return 0
	}
	return u.Capacity - u.UsedBytes
}

// Stats is implemented by StackStats, PoolStats and BuddyStats.
type Stats interface {
	Kind() Kind
	Totals() Usage
}

// StackStats is the snapshot reported by a stack allocator.
type StackStats struct {
	Usage
}

// Kind implements Stats.
func (StackStats) Kind() Kind { return KindStack }

// PoolStats is the snapshot reported by a pool allocator.
type PoolStats struct {
	Usage
	NumBlocks int `json:"num_blocks"`
}

// Kind implements Stats.
func (PoolStats) Kind() Kind { return KindPool }

// BuddyStats is the snapshot reported by a buddy allocator.
type BuddyStats struct {
	Usage
}

// Kind implements Stats.
func (BuddyStats) Kind() Kind { return KindBuddy }

// Record describes one live allocation.
type Record struct {
	Kind        Kind      `json:"kind"`
	AllocatorID int       `json:"allocator_id"`
	Addr        Addr      `json:"addr"`
	Size        uint64    `json:"size"`
	Tag         string    `json:"tag"`
	CreatedAt   time.Time `json:"created_at"`
}

// Snapshot is a consistent copy of every registry map.
type Snapshot struct {
	Stack       map[int]StackStats `json:"stack"`
	Pool        map[int]PoolStats  `json:"pool"`
	Buddy       map[int]BuddyStats `json:"buddy"`
	Allocations map[Addr]Record    `json:"allocations"`
	TakenAt     time.Time          `json:"taken_at"`
}

// Compile-time interface checks
var (
	_ Stats = StackStats{}
	_ Stats = PoolStats{}
	_ Stats = BuddyStats{}
)
