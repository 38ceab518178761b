package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/tracker"
)

func TestStack_ReverseFreeRestoresEmpty(t *testing.T) {
	s := newTestStack(t, 1024, nil)

	var addrs []Addr
	for range 3 {
		addr, err := s.Request(100, "")
		require.NoError(t, err)
		addrs = append(addrs, addr)
	}
	assert.EqualValues(t, 300, s.Stats().Totals().UsedBytes)
	assert.Equal(t, s.Base(), addrs[0])
	assert.Equal(t, addrs[0]+100, addrs[1])
	assert.Equal(t, addrs[1]+100, addrs[2])

	for i := len(addrs) - 1; i >= 0; i-- {
		require.NoError(t, s.Free(addrs[i]))
	}
	assert.Zero(t, s.Stats().Totals().UsedBytes)
	assert.Zero(t, s.Depth())
}

func TestStack_FreeNilPopsTop(t *testing.T) {
	s := newTestStack(t, 256, nil)
	first, err := s.Request(10, "")
	require.NoError(t, err)
	_, err = s.Request(20, "")
	require.NoError(t, err)

	require.NoError(t, s.Free(NilAddr))
	assert.EqualValues(t, 10, s.Stats().Totals().UsedBytes)
	assert.Equal(t, first, s.Top())

	require.NoError(t, s.Pop())
	assert.Equal(t, NilAddr, s.Top())
}

func TestStack_FreeNotTop(t *testing.T) {
	s := newTestStack(t, 256, nil)
	first, err := s.Request(10, "")
	require.NoError(t, err)
	second, err := s.Request(20, "")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Free(first), ErrNotTop)
	assert.ErrorIs(t, s.Free(second+1), ErrNotTop)
	assert.Equal(t, 2, s.Depth())
	assert.EqualValues(t, 30, s.Stats().Totals().UsedBytes)

	require.NoError(t, s.Free(second))
	require.NoError(t, s.Free(first))
}

func TestStack_FreeEmpty(t *testing.T) {
	s := newTestStack(t, 64, nil)
	assert.ErrorIs(t, s.Free(NilAddr), ErrEmptyStack)

	addr, err := s.Request(8, "")
	require.NoError(t, err)
	require.NoError(t, s.Free(addr))
	assert.ErrorIs(t, s.Free(addr), ErrEmptyStack)
	assert.Zero(t, s.Stats().Totals().UsedBytes)
}

func TestStack_Exhaustion(t *testing.T) {
	s := newTestStack(t, 100, nil)

	_, err := s.Request(60, "")
	require.NoError(t, err)
	_, err = s.Request(41, "")
	assert.ErrorIs(t, err, ErrNoSpace)

	_, err = s.Request(40, "")
	require.NoError(t, err)
	assert.EqualValues(t, 100, s.Stats().Totals().UsedBytes)
	assert.Zero(t, s.Stats().Totals().Free())

	_, err = s.Request(1, "")
	assert.ErrorIs(t, err, ErrNoSpace)
}

func TestStack_RequestRejections(t *testing.T) {
	s := newTestStack(t, 64, nil)
	_, err := s.Request(0, "")
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = s.Request(-1, "")
	assert.ErrorIs(t, err, ErrInvalidSize)
	assert.Zero(t, s.Depth())
}

func TestStack_Reset(t *testing.T) {
	opts, reg := newTracked(t)
	s := newTestStack(t, 512, opts)
	for _, size := range []int{16, 32, 64} {
		_, err := s.Request(size, "frame")
		require.NoError(t, err)
	}
	require.Equal(t, 3, reg.NumAllocations())

	require.NoError(t, s.Reset())
	assert.Zero(t, s.Depth())
	assert.Zero(t, s.Stats().Totals().UsedBytes)
	assert.Zero(t, reg.NumAllocations())
	assert.Zero(t, reg.StackAllocators()[s.ID()].UsedBytes)

	addr, err := s.Request(8, "")
	require.NoError(t, err)
	assert.Equal(t, s.Base(), addr)
}

func TestStack_InitValidation(t *testing.T) {
	var s StackAllocator
	require.ErrorIs(t, s.Init(0, nil), ErrInvalidSize)
	require.ErrorIs(t, s.Init(-10, nil), ErrInvalidSize)
	assert.Equal(t, -1, s.ID())
	assert.NoError(t, s.Close())
}

func TestStack_ZeroValueIsUninitialized(t *testing.T) {
	var s StackAllocator
	assert.Equal(t, tracker.KindStack, s.Kind())
	assert.Equal(t, NilAddr, s.Top())

	_, err := s.Request(8, "")
	assert.ErrorIs(t, err, ErrUninitialized)
	assert.ErrorIs(t, s.Free(NilAddr), ErrUninitialized)
	assert.ErrorIs(t, s.Reset(), ErrUninitialized)
	assert.Zero(t, s.Stats().Totals().Capacity)
}

func TestStack_Bytes(t *testing.T) {
	s := newTestStack(t, 128, nil)
	a, err := s.Request(10, "")
	require.NoError(t, err)
	b, err := s.Request(30, "")
	require.NoError(t, err)

	buf, err := s.Bytes(a)
	require.NoError(t, err)
	assert.Len(t, buf, 10)
	buf, err = s.Bytes(b)
	require.NoError(t, err)
	assert.Len(t, buf, 30)

	_, err = s.Bytes(a + 5)
	assert.ErrorIs(t, err, ErrNotAllocated)
	_, err = s.Bytes(b + 30)
	assert.ErrorIs(t, err, ErrNotAllocated, "head is not an allocation")
	_, err = s.Bytes(s.Base() + 128)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestStack_Registry(t *testing.T) {
	opts, reg := newTracked(t)
	s := newTestStack(t, 256, opts)
	id := s.ID()

	addr, err := s.Request(48, "scratch")
	require.NoError(t, err)

	stats := reg.StackAllocators()[id]
	assert.EqualValues(t, 256, stats.Capacity)
	assert.EqualValues(t, 48, stats.UsedBytes)

	rec, ok := reg.Allocation(addr)
	require.True(t, ok)
	assert.Equal(t, tracker.KindStack, rec.Kind)
	assert.EqualValues(t, 48, rec.Size)
	assert.Equal(t, "scratch", rec.Tag)

	require.NoError(t, s.Free(addr))
	_, ok = reg.Allocation(addr)
	assert.False(t, ok)

	_, err = s.Request(16, "")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.NotContains(t, reg.StackAllocators(), id)
	assert.Zero(t, reg.NumAllocations())
}
