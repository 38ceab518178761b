// Package tracker records allocator statistics and live allocations.
//
// # Overview
//
// A Registry is a passive, observational sink. Allocators in the alloc package
// push the latest Stats of each instance and one Record per live allocation;
// introspection tools read copies back through the query accessors or a
// single consistent Snapshot.
//
// The registry never owns allocated memory. Keys are allocator ids (per Kind)
// and live addresses, and an entry must not outlive the allocator or region it
// describes. Allocators evict their own records when freed or closed.
//
// # Usage Example
//
//	reg := tracker.NewRegistry()
//	pool, err := alloc.NewPool(64, 128, false, &alloc.Options{Registry: reg})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	addr, _ := pool.Request(0, "enemy")
//	rec, ok := reg.Allocation(addr) // rec.Tag == "enemy"
//
// # Ids
//
// Each Registry owns an IDGenerator handing out monotonically increasing ids
// per Kind, starting at 0. Tests build their own Registry so ids are
// deterministic.
//
// # Thread Safety
//
// Registry and IDGenerator are safe for concurrent use. A single lock guards
// all maps, so allocators owned by different goroutines may report to the same
// registry.
package tracker
