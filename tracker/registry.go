package tracker

import (
	"maps"
	"sync"
	"time"
)

// Registry records allocator stats and live allocations.
// It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	stack map[int]StackStats
	pool  map[int]PoolStats
	buddy map[int]BuddyStats

	// allocations keyed by live address
	allocations map[Addr]Record

	ids *IDGenerator
	now func() time.Time
}

// NewRegistry returns an empty registry with its own id generator.
func NewRegistry() *Registry {
	return &Registry{
		stack:       make(map[int]StackStats),
		pool:        make(map[int]PoolStats),
		buddy:       make(map[int]BuddyStats),
		allocations: make(map[Addr]Record),
		ids:         NewIDGenerator(),
		now:         time.Now,
	}
}

// IDs returns the id generator owned by the registry.
func (r *Registry) IDs() *IDGenerator {
	return r.ids
}

// SetClock replaces the time source used for Record.CreatedAt.
// A nil clock restores time.Now.
func (r *Registry) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// TrackAllocator starts tracking the allocator with the given id, or replaces
// its previous stats. The map it lands in is chosen by stats.Kind().
func (r *Registry) TrackAllocator(id int, stats Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch s := stats.(type) {
	case StackStats:
		r.stack[id] = s
	case PoolStats:
		r.pool[id] = s
	case BuddyStats:
		r.buddy[id] = s
	case *StackStats:
		r.stack[id] = *s
	case *PoolStats:
		r.pool[id] = *s
	case *BuddyStats:
		r.buddy[id] = *s
	}
}

// RemoveAllocator stops tracking the stats of an allocator. Records it still
// owns are left in place; see ForgetAllocations.
func (r *Registry) RemoveAllocator(id int, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case KindStack:
		delete(r.stack, id)
	case KindPool:
		delete(r.pool, id)
	case KindBuddy:
		delete(r.buddy, id)
	}
}

// ForgetAllocations evicts every record owned by the given allocator and
// returns how many were removed.
func (r *Registry) ForgetAllocations(kind Kind, id int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for addr, rec := range r.allocations {
		if rec.Kind == kind && rec.AllocatorID == id {
			delete(r.allocations, addr)
			n++
		}
	}
	return n
}

// StartTracking records a new live allocation. An existing record at the same
// address is replaced.
func (r *Registry) StartTracking(kind Kind, allocatorID int, addr Addr, size uint64, tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allocations[addr] = Record{
		Kind:        kind,
		AllocatorID: allocatorID,
		Addr:        addr,
		Size:        size,
		Tag:         tag,
		CreatedAt:   r.now(),
	}
}

// StopTracking removes the record at addr, if any.
func (r *Registry) StopTracking(addr Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.allocations, addr)
}

// Allocation returns the record at addr.
func (r *Registry) Allocation(addr Addr) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.allocations[addr]
	return rec, ok
}

// Allocations returns a copy of every live record.
func (r *Registry) Allocations() map[Addr]Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.allocations)
}

// NumAllocations returns the number of live records.
func (r *Registry) NumAllocations() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.allocations)
}

// StackAllocators returns a copy of the stats of every tracked stack allocator.
func (r *Registry) StackAllocators() map[int]StackStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.stack)
}

// PoolAllocators returns a copy of the stats of every tracked pool allocator.
func (r *Registry) PoolAllocators() map[int]PoolStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.pool)
}

// BuddyAllocators returns a copy of the stats of every tracked buddy allocator.
func (r *Registry) BuddyAllocators() map[int]BuddyStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.buddy)
}

// AllocatorStats returns the stats of one tracked allocator.
func (r *Registry) AllocatorStats(kind Kind, id int) (Stats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case KindStack:
		s, ok := r.stack[id]
		return s, ok
	case KindPool:
		s, ok := r.pool[id]
		return s, ok
	case KindBuddy:
		s, ok := r.buddy[id]
		return s, ok
	}
	return nil, false
}

// Snapshot copies every map under a single read lock.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		Stack:       maps.Clone(r.stack),
		Pool:        maps.Clone(r.pool),
		Buddy:       maps.Clone(r.buddy),
		Allocations: maps.Clone(r.allocations),
		TakenAt:     r.now(),
	}
}
