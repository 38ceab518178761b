package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/tracker"
)

// newTracked returns options wired to a fresh registry.
func newTracked(t testing.TB) (*Options, *tracker.Registry) {
	t.Helper()
	reg := tracker.NewRegistry()
	return &Options{Registry: reg}, reg
}

func newTestBuddy(t testing.TB, capacity int, opts *Options) *BuddyAllocator {
	t.Helper()
	b, err := NewBuddy(capacity, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func newTestPool(t testing.TB, slots, slotSize int, aligned bool, opts *Options) *PoolAllocator {
	t.Helper()
	p, err := NewPool(slots, slotSize, aligned, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func newTestStack(t testing.TB, capacity int, opts *Options) *StackAllocator {
	t.Helper()
	s, err := NewStack(capacity, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// checkBuddyTree verifies the structural invariants of the node tree and
// returns the total size of Used nodes.
func checkBuddyTree(t testing.TB, b *BuddyAllocator) int {
	t.Helper()
	nodes := b.Nodes()
	var walk func(i int) (used int, allFree bool)
	walk = func(i int) (int, bool) {
		n := nodes[i]
		left := 2*i + 1
		leaf := left >= len(nodes)
		switch n.State {
		case NodeUsed:
			if !leaf {
				_, lf := walk(left)
				_, rf := walk(left + 1)
				require.True(t, lf && rf, "node %d is used but has non-free descendants", i)
			}
			return n.Size, false
		case NodeFree:
			if !leaf {
				_, lf := walk(left)
				_, rf := walk(left + 1)
				require.True(t, lf && rf, "node %d is free but has non-free descendants", i)
			}
			return 0, true
		default:
			require.False(t, leaf, "leaf %d is split", i)
			lu, lf := walk(left)
			ru, rf := walk(left + 1)
			require.False(t, lf && rf, "node %d is split with two free children", i)
			return lu + ru, false
		}
	}
	used, _ := walk(0)
	require.EqualValues(t, used, b.Stats().Totals().UsedBytes)
	return used
}
