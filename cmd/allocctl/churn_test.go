package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/tracker"
)

func testChurnConfig() ChurnConfig {
	return ChurnConfig{
		Frames:    50,
		Spawn:     16,
		PoolSlots: 8,
		SlotSize:  64,
		StackSize: 4096,
		BuddySize: 64 * 1024,
		Seed:      42,
		Backing:   alloc.BackingHeap,
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	run := func() ChurnResult {
		cfg := testChurnConfig()
		w, err := newWorld(cfg)
		require.NoError(t, err)
		defer w.Close()
		res, err := w.simulate(cfg)
		require.NoError(t, err)
		return res
	}

	first := run()
	assert.Equal(t, first, run())
	assert.Equal(t, 50, first.Frames)
	assert.Equal(t, first.Spawned-first.Despawned, first.Live)
}

func TestSimulate_RegistryMatchesWorld(t *testing.T) {
	cfg := testChurnConfig()
	w, err := newWorld(cfg)
	require.NoError(t, err)
	defer w.Close()

	res, err := w.simulate(cfg)
	require.NoError(t, err)

	// The stack is reset every frame, so only entities remain tracked.
	assert.Equal(t, res.Live, w.reg.NumAllocations())
	assert.Zero(t, w.stack.Depth())

	pools := w.reg.PoolAllocators()
	require.Len(t, pools, 1)
	assert.Equal(t, res.PoolBlocks, pools[w.pool.ID()].NumBlocks)
	assert.LessOrEqual(t, res.ScratchPeak, uint64(cfg.StackSize))

	for _, e := range w.entities {
		rec, ok := w.reg.Allocation(e.addr)
		require.True(t, ok)
		assert.Equal(t, e.owner.Kind(), rec.Kind)
		if rec.Kind == tracker.KindBuddy {
			assert.Equal(t, "Asset", rec.Tag)
		}
	}
}

func TestSimulate_TinyBuddyFailsGracefully(t *testing.T) {
	cfg := testChurnConfig()
	cfg.BuddySize = 1024 // smaller than most assets
	cfg.StackSize = 64   // smaller than most scratch buffers
	w, err := newWorld(cfg)
	require.NoError(t, err)
	defer w.Close()

	res, err := w.simulate(cfg)
	require.NoError(t, err)
	assert.Positive(t, res.Failed)
}

func TestNewWorld_InvalidBuddy(t *testing.T) {
	cfg := testChurnConfig()
	cfg.BuddySize = 1000
	_, err := newWorld(cfg)
	assert.ErrorIs(t, err, alloc.ErrNotPowerOfTwo)
}

func TestChurnCommand(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		wantErr     bool
		wantContain []string
		wantJSON    bool
		check       func(t *testing.T, out string)
	}{
		{
			name:        "default report",
			setup:       func() { churnFrames = 10 },
			wantContain: []string{"Simulated 10 frames", "KIND", "stack", "pool", "buddy"},
		},
		{
			name:        "with records",
			setup:       func() { churnFrames, churnRecords = 10, true },
			wantContain: []string{"Simulated 10 frames"},
			check: func(t *testing.T, out string) {
				if !strings.Contains(out, ", 0 live\n") {
					assert.Contains(t, out, "ADDR")
				}
			},
		},
		{
			name:     "json",
			setup:    func() { churnFrames, jsonOut = 5, true },
			wantJSON: true,
		},
		{
			name:    "bad stack size",
			setup:   func() { churnStackSize = "lots" },
			wantErr: true,
		},
		{
			name:    "buddy not a power of two",
			setup:   func() { churnBuddySize = "1000B" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			tt.setup()

			out, err := captureOutput(t, runChurn)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.wantContain {
				assert.Contains(t, out, want)
			}
			if tt.check != nil {
				tt.check(t, out)
			}
			if tt.wantJSON {
				var doc struct {
					Result   ChurnResult    `json:"result"`
					Snapshot map[string]any `json:"snapshot"`
				}
				require.NoError(t, json.Unmarshal([]byte(out), &doc))
				assert.Equal(t, 5, doc.Result.Frames)
				assert.Contains(t, doc.Snapshot, "pool")
			}
		})
	}
	resetFlags(t)
}
