// Package arena provides the contiguous backing regions used by allocators.
//
// An Arena hands out addresses, not pointers. Every address coming back from a
// caller is converted to an offset through Offset, which checks it against the
// arena bounds before any byte is touched.
package arena

import (
	"errors"
	"fmt"
	"unsafe"
)

// Backing selects where arena memory comes from.
type Backing uint8

const (
	// Heap arenas are ordinary Go byte slices retained by the Arena.
	Heap Backing = iota
	// Mapped arenas are anonymous private mappings outside the Go heap.
	// Platforms without mmap support fall back to Heap.
	Mapped
)

// String returns the backing name.
func (b Backing) String() string {
	switch b {
	case Heap:
		return "heap"
	case Mapped:
		return "mapped"
	default:
		return fmt.Sprintf("backing(%d)", uint8(b))
	}
}

// MaxSize is the largest arena that may be requested (1TB).
const MaxSize = 1 << 40

var (
	// ErrTooLarge indicates a size above MaxSize or an overflowing size computation.
	ErrTooLarge = errors.New("arena: size too large")

	// ErrBadSize indicates a non-positive size or alignment.
	ErrBadSize = errors.New("arena: size and alignment must be positive")

	// ErrMap indicates the operating system refused the mapping.
	ErrMap = errors.New("arena: mapping failed")

	// ErrReleased indicates use of an arena after Release.
	ErrReleased = errors.New("arena: released")
)

// Arena is one contiguous region of size bytes.
type Arena struct {
	raw     []byte // full region as acquired, including alignment slack
	data    []byte // usable window, len(data) == size
	base    uintptr
	backing Backing
	unmap   func() error
}

// New acquires a region of size bytes whose first byte is aligned to align.
// align must be positive; 1 means no alignment requirement.
func New(size, align int, backing Backing) (*Arena, error) {
	if size <= 0 || align <= 0 {
		return nil, ErrBadSize
	}
	total, ok := AddOverflowSafe(size, align-1)
	if !ok || total > MaxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}

	var (
		raw   []byte
		unmap func() error
		err   error
	)
	switch backing {
	case Mapped:
		raw, unmap, err = mapAnon(total)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMap, err)
		}
		if unmap == nil {
			backing = Heap
		}
	default:
		backing = Heap
		raw = make([]byte, total)
	}

	start := 0
	if rem := int(uintptr(unsafe.Pointer(&raw[0])) % uintptr(align)); rem != 0 {
		start = align - rem
	}
	data := raw[start : start+size : start+size]

	return &Arena{
		raw:     raw,
		data:    data,
		base:    uintptr(unsafe.Pointer(&data[0])),
		backing: backing,
		unmap:   unmap,
	}, nil
}

// Len returns the usable size in bytes. A released arena has length 0.
func (a *Arena) Len() int {
	return len(a.data)
}

// Base returns the address of the first usable byte, or 0 once released.
func (a *Arena) Base() uintptr {
	if a.data == nil {
		return 0
	}
	return a.base
}

// Backing reports where the memory came from. Mapped requests on platforms
// without mmap report Heap.
func (a *Arena) Backing() Backing {
	return a.backing
}

// Contains reports whether addr lies inside the arena.
func (a *Arena) Contains(addr uintptr) bool {
	_, ok := a.Offset(addr)
	return ok
}

// Offset converts addr to an offset into the arena.
func (a *Arena) Offset(addr uintptr) (int, bool) {
	if a.data == nil || addr < a.base {
		return 0, false
	}
	off := addr - a.base
	if off >= uintptr(len(a.data)) {
		return 0, false
	}
	return int(off), true
}

// Addr converts an offset to an address. off must be within [0, Len()].
func (a *Arena) Addr(off int) uintptr {
	return a.base + uintptr(off)
}

// Slice returns the n bytes starting at addr.
func (a *Arena) Slice(addr uintptr, n int) ([]byte, bool) {
	off, ok := a.Offset(addr)
	if !ok {
		return nil, false
	}
	return Slice(a.data, off, n)
}

// Release gives the region back. Calling Release twice is a no-op.
func (a *Arena) Release() error {
	if a.data == nil {
		return nil
	}
	a.data, a.raw = nil, nil
	if a.unmap != nil {
		unmap := a.unmap
		a.unmap = nil
		return unmap()
	}
	return nil
}
