// Package alloc provides custom memory allocators backed by contiguous arenas.
//
// # Overview
//
// Three strategies share the Allocator interface:
//
// BuddyAllocator: power-of-two blocks from a single arena
//
//   - Capacity must be a power of two, at least MinBuddyBlock (32) bytes
//   - Requests round up to max(32, nextPow2(size))
//   - Blocks are split on demand and merged with their buddy on Free
//
// PoolAllocator: fixed-size slots
//
//   - One block of slotsPerBlock slots at Init, more appended on demand
//   - O(1) Request and Free through per-block intrusive free lists
//   - Optional slot-size alignment of every block
//
// StackAllocator: bump pointer
//
//   - O(1) Request with no per-allocation overhead
//   - Strict LIFO Free, plus Reset to drop everything at once
//
// # Usage Example
//
//	reg := tracker.NewRegistry()
//	pool, err := alloc.NewPool(64, 96, true, &alloc.Options{Registry: reg})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	addr, err := pool.Request(0, "Transform")
//	if err != nil {
//	    return err
//	}
//	buf, _ := pool.Bytes(addr)
//	copy(buf, encoded)
//
//	_ = pool.Free(addr)
//
// # Addresses
//
// Addresses are real addresses inside an allocator's arena, so they are
// unique across every live allocator in the process and can key a shared
// tracker.Registry. NilAddr (0) is never returned by a successful Request.
// Every address passed back in is range-checked against the arena before
// any state is touched.
//
// # Lifecycle
//
// The zero value of each allocator is valid but uninitialized: ID returns
// -1 and every operation returns ErrUninitialized. Init (or the New*
// constructors) acquires the arena, assigns an id and publishes stats to the
// configured registry. After every successful Request and Free the
// allocator pushes fresh stats. Close releases the arena and removes the
// allocator and its outstanding records from the registry.
//
// # Thread Safety
//
// Allocators are NOT safe for concurrent use. Give each goroutine its own
// allocator or serialize access. The tracker.Registry they report to is safe
// for concurrent use.
package alloc
