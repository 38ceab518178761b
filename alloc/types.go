package alloc

import "github.com/joshuapare/memkit/tracker"

// Addr is an address inside an allocator arena. It is an alias for the
// registry's key type so records can be looked up with allocator results.
type Addr = tracker.Addr

// NilAddr is never returned by a successful Request.
const NilAddr Addr = 0

// DefaultTag labels allocations requested with an empty tag.
const DefaultTag = "No tag"

// Allocator defines the capability set shared by every allocation strategy.
//
// Implementations:
//   - BuddyAllocator: power-of-two blocks carved from one arena
//   - PoolAllocator: fixed-size slots in a growable list of blocks
//   - StackAllocator: bump pointer with strict LIFO release
//
// Callers such as entity storage can hold any of them behind this interface.
// Configuration differs per strategy, so Init is not part of the interface.
type Allocator interface {
	// Kind reports the allocation strategy.
	Kind() tracker.Kind

	// ID returns the allocator id, or -1 before Init succeeds.
	ID() int

	// Request returns the address of a region of at least size bytes.
	// PoolAllocator accepts size 0 to mean one slot.
	Request(size int, tag string) (Addr, error)

	// Free releases the region starting at addr.
	// StackAllocator only releases its most recent region.
	Free(addr Addr) error

	// Bytes returns the whole live region starting at addr.
	Bytes(addr Addr) ([]byte, error)

	// Stats returns the current capacity and usage.
	Stats() tracker.Stats

	// Close releases the backing memory and evicts the allocator from its registry.
	Close() error
}

func tagOrDefault(tag string) string {
	if tag == "" {
		return DefaultTag
	}
	return tag
}
