package main

import (
	"errors"
	"fmt"
	"math/rand"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/alloc"
	"github.com/joshuapare/memkit/report"
	"github.com/joshuapare/memkit/tracker"
)

var (
	churnFrames    int
	churnSpawn     int
	churnSlots     int
	churnSlotSize  int
	churnStackSize string
	churnBuddySize string
	churnSeed      int64
	churnMapped    bool
	churnRecords   bool
)

func init() {
	cmd := newChurnCmd()
	cmd.Flags().IntVar(&churnFrames, "frames", 120, "Number of frames to simulate")
	cmd.Flags().IntVar(&churnSpawn, "spawn", 32, "Maximum entities spawned (and despawned) per frame")
	cmd.Flags().IntVar(&churnSlots, "pool-slots", 64, "Slots per pool block")
	cmd.Flags().IntVar(&churnSlotSize, "slot-size", 96, "Pool slot size in bytes")
	cmd.Flags().StringVar(&churnStackSize, "stack", "64KiB", "Per-frame scratch stack capacity")
	cmd.Flags().StringVar(&churnBuddySize, "buddy", "1MiB", "Asset buddy capacity (power of two)")
	cmd.Flags().Int64Var(&churnSeed, "seed", 1, "Random seed")
	cmd.Flags().BoolVar(&churnMapped, "mapped", false, "Back arenas with anonymous mappings")
	cmd.Flags().BoolVar(&churnRecords, "records", false, "List live allocations in the report")
	rootCmd.AddCommand(cmd)
}

func newChurnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "churn",
		Short: "Simulate per-frame entity spawn and despawn",
		Long: `The churn command runs a frame loop against one allocator of each kind.
Every frame it takes scratch memory from a stack allocator, spawns entities
whose components live in a pool (and whose assets live in a buddy allocator),
despawns a random subset and resets the stack. The registry report is printed
at the end.

Example:
  allocctl churn
  allocctl churn --frames 600 --spawn 64 --buddy 4MiB
  allocctl churn --records --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChurn()
		},
	}
	return cmd
}

// components are the tags used for pooled entity data.
var components = []string{"Transform", "Velocity", "Sprite", "Collider", "Health"}

// ChurnConfig sizes one simulation.
type ChurnConfig struct {
	Frames    int
	Spawn     int
	PoolSlots int
	SlotSize  int
	StackSize int
	BuddySize int
	Seed      int64
	Backing   alloc.Backing
}

// ChurnResult summarizes one simulation.
type ChurnResult struct {
	Frames        int    `json:"frames"`
	Spawned       int    `json:"spawned"`
	Despawned     int    `json:"despawned"`
	Failed        int    `json:"failed"`
	Live          int    `json:"live"`
	ScratchPeak   uint64 `json:"scratch_peak"`
	PoolBlocks    int    `json:"pool_blocks"`
	AssetBytesMax uint64 `json:"asset_bytes_max"`
}

type entity struct {
	owner alloc.Allocator
	addr  alloc.Addr
}

// world owns one allocator of each kind, all reporting to reg.
type world struct {
	reg   *tracker.Registry
	stack *alloc.StackAllocator
	pool  *alloc.PoolAllocator
	buddy *alloc.BuddyAllocator

	entities []entity
	rng      *rand.Rand
}

func newWorld(cfg ChurnConfig) (*world, error) {
	reg := tracker.NewRegistry()
	opts := &alloc.Options{Registry: reg, Backing: cfg.Backing}

	stack, err := alloc.NewStack(cfg.StackSize, opts)
	if err != nil {
		return nil, fmt.Errorf("scratch stack: %w", err)
	}
	pool, err := alloc.NewPool(cfg.PoolSlots, cfg.SlotSize, true, opts)
	if err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("component pool: %w", err)
	}
	buddy, err := alloc.NewBuddy(cfg.BuddySize, opts)
	if err != nil {
		_ = stack.Close()
		_ = pool.Close()
		return nil, fmt.Errorf("asset buddy: %w", err)
	}
	return &world{
		reg:   reg,
		stack: stack,
		pool:  pool,
		buddy: buddy,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (w *world) Close() error {
	return errors.Join(w.stack.Close(), w.pool.Close(), w.buddy.Close())
}

// spawn places one entity. Roughly one in four carries an asset.
func (w *world) spawn(frame int) (bool, error) {
	var (
		a    alloc.Allocator = w.pool
		size                 = w.rng.Intn(w.pool.SlotSize() + 1)
		tag                  = components[w.rng.Intn(len(components))]
	)
	if w.rng.Intn(4) == 0 {
		a = w.buddy
		size = 64 + w.rng.Intn(8192)
		tag = "Asset"
	}

	addr, err := a.Request(size, tag)
	if errors.Is(err, alloc.ErrNoSpace) || errors.Is(err, alloc.ErrSizeTooLarge) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	buf, err := a.Bytes(addr)
	if err != nil {
		return false, err
	}
	buf[0] = byte(frame)
	w.entities = append(w.entities, entity{owner: a, addr: addr})
	return true, nil
}

// despawn frees a random live entity.
func (w *world) despawn() error {
	i := w.rng.Intn(len(w.entities))
	e := w.entities[i]
	if err := e.owner.Free(e.addr); err != nil {
		return err
	}
	last := len(w.entities) - 1
	w.entities[i] = w.entities[last]
	w.entities = w.entities[:last]
	return nil
}

// scratch takes a handful of temporary buffers from the stack.
func (w *world) scratch() (int, error) {
	failed := 0
	for range 1 + w.rng.Intn(8) {
		_, err := w.stack.Request(16+w.rng.Intn(1024), "scratch")
		switch {
		case errors.Is(err, alloc.ErrNoSpace):
			failed++
		case err != nil:
			return failed, err
		}
	}
	return failed, nil
}

// simulate runs cfg.Frames frames on w.
func (w *world) simulate(cfg ChurnConfig) (ChurnResult, error) {
	res := ChurnResult{Frames: cfg.Frames}
	for frame := range cfg.Frames {
		failed, err := w.scratch()
		if err != nil {
			return res, fmt.Errorf("frame %d: scratch: %w", frame, err)
		}
		res.Failed += failed

		for range w.rng.Intn(cfg.Spawn + 1) {
			ok, err := w.spawn(frame)
			if err != nil {
				return res, fmt.Errorf("frame %d: spawn: %w", frame, err)
			}
			if ok {
				res.Spawned++
			} else {
				res.Failed++
			}
		}

		for range w.rng.Intn(cfg.Spawn + 1) {
			if len(w.entities) == 0 {
				break
			}
			if err := w.despawn(); err != nil {
				return res, fmt.Errorf("frame %d: despawn: %w", frame, err)
			}
			res.Despawned++
		}

		res.ScratchPeak = max(res.ScratchPeak, w.stack.Stats().Totals().UsedBytes)
		res.AssetBytesMax = max(res.AssetBytesMax, w.buddy.Stats().Totals().UsedBytes)
		if err := w.stack.Reset(); err != nil {
			return res, fmt.Errorf("frame %d: reset: %w", frame, err)
		}
		printVerbose("frame %d: %d live entities, %d pool blocks\n", frame, len(w.entities), w.pool.NumBlocks())
	}
	res.Live = len(w.entities)
	res.PoolBlocks = w.pool.NumBlocks()
	return res, nil
}

func churnConfig() (ChurnConfig, error) {
	stackSize, err := humanize.ParseBytes(churnStackSize)
	if err != nil {
		return ChurnConfig{}, fmt.Errorf("invalid --stack: %w", err)
	}
	buddySize, err := humanize.ParseBytes(churnBuddySize)
	if err != nil {
		return ChurnConfig{}, fmt.Errorf("invalid --buddy: %w", err)
	}
	if churnFrames < 0 || churnSpawn < 0 {
		return ChurnConfig{}, fmt.Errorf("--frames and --spawn must not be negative")
	}
	cfg := ChurnConfig{
		Frames:    churnFrames,
		Spawn:     churnSpawn,
		PoolSlots: churnSlots,
		SlotSize:  churnSlotSize,
		StackSize: int(stackSize),
		BuddySize: int(buddySize),
		Seed:      churnSeed,
		Backing:   alloc.BackingHeap,
	}
	if churnMapped {
		cfg.Backing = alloc.BackingMapped
	}
	return cfg, nil
}

func runChurn() error {
	cfg, err := churnConfig()
	if err != nil {
		return err
	}

	w, err := newWorld(cfg)
	if err != nil {
		return err
	}
	defer w.Close()

	res, err := w.simulate(cfg)
	if err != nil {
		return err
	}

	opts := report.DefaultOptions()
	opts.Allocations = churnRecords
	if jsonOut {
		return printJSON(struct {
			Result   ChurnResult      `json:"result"`
			Snapshot tracker.Snapshot `json:"snapshot"`
		}{res, snapshotFor(w.reg, opts)})
	}

	printInfo("Simulated %d frames: %d spawned, %d despawned, %d failed, %d live\n",
		res.Frames, res.Spawned, res.Despawned, res.Failed, res.Live)
	printInfo("Scratch peak %s, asset peak %s, %d pool blocks\n\n",
		humanize.IBytes(res.ScratchPeak), humanize.IBytes(res.AssetBytesMax), res.PoolBlocks)
	if quiet {
		return nil
	}
	return report.WriteRegistry(os.Stdout, w.reg, opts)
}

// snapshotFor drops allocation records unless opts asks for them.
func snapshotFor(reg *tracker.Registry, opts report.Options) tracker.Snapshot {
	snap := reg.Snapshot()
	if !opts.Allocations {
		snap.Allocations = nil
	}
	return snap
}
