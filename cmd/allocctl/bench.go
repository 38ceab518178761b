package main

import (
	"fmt"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/memkit/alloc"
)

var (
	benchCount  int
	benchSize   int
	benchRounds int
	benchKinds  []string
	benchMapped bool
)

func init() {
	cmd := newBenchCmd()
	cmd.Flags().IntVar(&benchCount, "count", 10000, "Allocations per round")
	cmd.Flags().IntVar(&benchSize, "size", 64, "Bytes per allocation")
	cmd.Flags().IntVar(&benchRounds, "rounds", 10, "Request/free rounds")
	cmd.Flags().StringSliceVar(&benchKinds, "kind", []string{"pool", "stack", "buddy"}, "Allocators to benchmark")
	cmd.Flags().BoolVar(&benchMapped, "mapped", false, "Back arenas with anonymous mappings")
	rootCmd.AddCommand(cmd)
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Compare allocators against the Go heap",
		Long: `The bench command requests --count blocks of --size bytes from each
allocator, frees them all, and repeats for --rounds. The same pattern is timed
against make([]byte, size) on the Go heap.

Example:
  allocctl bench
  allocctl bench --kind pool --count 100000 --size 128
  allocctl bench --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench()
		},
	}
	return cmd
}

// BenchResult is the timing of one allocator against the heap baseline.
type BenchResult struct {
	Kind      string        `json:"kind"`
	Ops       int           `json:"ops"`
	Size      int           `json:"size"`
	Allocator time.Duration `json:"allocator_ns"`
	Heap      time.Duration `json:"heap_ns"`
	Speedup   float64       `json:"speedup"`
}

// benchSink keeps heap baselines alive.
var benchSink [][]byte

func newBenchAllocator(kind string, count, size int, backing alloc.Backing) (alloc.Allocator, error) {
	opts := &alloc.Options{Backing: backing}
	switch kind {
	case "pool":
		return alloc.NewPool(count, size, false, opts)
	case "stack":
		return alloc.NewStack(count*size, opts)
	case "buddy":
		block := max(alloc.MinBuddyBlock, nextPow2(size))
		return alloc.NewBuddy(nextPow2(count*block), opts)
	default:
		return nil, fmt.Errorf("unknown allocator kind %q (want pool, stack or buddy)", kind)
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// timeAllocator runs rounds of count requests followed by frees in reverse
// order, which every allocator kind accepts.
func timeAllocator(a alloc.Allocator, count, size, rounds int) (time.Duration, error) {
	addrs := make([]alloc.Addr, count)
	start := time.Now()
	for range rounds {
		for i := range addrs {
			addr, err := a.Request(size, "")
			if err != nil {
				return 0, fmt.Errorf("request %d: %w", i, err)
			}
			addrs[i] = addr
		}
		for i := len(addrs) - 1; i >= 0; i-- {
			if err := a.Free(addrs[i]); err != nil {
				return 0, fmt.Errorf("free %d: %w", i, err)
			}
		}
	}
	return time.Since(start), nil
}

func timeHeap(count, size, rounds int) time.Duration {
	bufs := make([][]byte, count)
	start := time.Now()
	for range rounds {
		for i := range bufs {
			bufs[i] = make([]byte, size)
		}
		benchSink = bufs
		bufs = make([][]byte, count)
	}
	return time.Since(start)
}

func runBenchKind(kind string, count, size, rounds int, backing alloc.Backing) (BenchResult, error) {
	a, err := newBenchAllocator(kind, count, size, backing)
	if err != nil {
		return BenchResult{}, err
	}
	defer a.Close()

	elapsed, err := timeAllocator(a, count, size, rounds)
	if err != nil {
		return BenchResult{}, fmt.Errorf("%s: %w", kind, err)
	}
	heap := timeHeap(count, size, rounds)

	res := BenchResult{
		Kind:      kind,
		Ops:       count * rounds,
		Size:      size,
		Allocator: elapsed,
		Heap:      heap,
	}
	if elapsed > 0 {
		res.Speedup = float64(heap) / float64(elapsed)
	}
	return res, nil
}

func runBench() error {
	if benchCount <= 0 || benchSize <= 0 || benchRounds <= 0 {
		return fmt.Errorf("--count, --size and --rounds must be positive")
	}
	backing := alloc.BackingHeap
	if benchMapped {
		backing = alloc.BackingMapped
	}

	kinds := slices.Compact(slices.Clone(benchKinds))
	results := make([]BenchResult, 0, len(kinds))
	for _, kind := range kinds {
		printVerbose("Benchmarking %s: %d x %s\n", kind, benchCount, humanize.IBytes(uint64(benchSize)))
		res, err := runBenchKind(kind, benchCount, benchSize, benchRounds, backing)
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	if jsonOut {
		return printJSON(results)
	}
	if quiet {
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tOPS\tSIZE\tALLOCATOR\tGO HEAP\tSPEEDUP")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2fx\n",
			r.Kind, humanize.Comma(int64(r.Ops)), humanize.IBytes(uint64(r.Size)),
			r.Allocator.Round(time.Microsecond), r.Heap.Round(time.Microsecond), r.Speedup)
	}
	return tw.Flush()
}
