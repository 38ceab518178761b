package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// baselineVariant names the Go heap benchmark of each allocator kind.
const baselineVariant = "HeapBaseline"

// BenchmarkResult represents a parsed benchmark result.
type BenchmarkResult struct {
	Name        string
	Kind        string // "Pool", "Stack", "Buddy"
	Variant     string // "RequestFree", "HeapBaseline", ...
	Iterations  int
	NsPerOp     float64
	BytesPerOp  int64
	AllocsPerOp int64
}

// ComparisonResult pairs an allocator benchmark with its kind's heap baseline.
type ComparisonResult struct {
	Kind         string
	Variant      string
	AllocNs      float64
	HeapNs       float64
	Speedup      float64
	AllocMem     int64
	HeapMem      int64
	AllocAllocs  int64
	HeapAllocs   int64
	BaselineLess bool
}

var (
	inputFile = flag.String(
		"input",
		"",
		"Input file with benchmark output (stdin if not specified)",
	)
	outputFile = flag.String("output", "", "Output markdown file (stdout if not specified)")
	quiet      = flag.Bool("quiet", false, "Suppress progress output")
)

func main() {
	flag.Parse()

	var in io.Reader = os.Stdin
	if *inputFile != "" {
		f, err := os.Open(*inputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening input file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	results := parseBenchmarks(bufio.NewScanner(in))
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Parsed %d benchmark results\n", len(results))
	}

	comparisons := generateComparisons(results)
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Generated %d comparisons\n", len(comparisons))
	}

	report := generateMarkdownReport(comparisons, time.Now())

	if *outputFile == "" {
		fmt.Fprint(os.Stdout, report)
		return
	}
	if err := os.WriteFile(*outputFile, []byte(report), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Report written to %s\n", *outputFile)
	}
}

// benchmarkRegex matches lines such as
// BenchmarkPool_RequestFree-8    10000    12450 ns/op    0 B/op    0 allocs/op
var benchmarkRegex = regexp.MustCompile(
	`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+([\d.]+)\s+B/op)?(?:\s+([\d.]+)\s+allocs/op)?`,
)

func parseBenchmarks(scanner *bufio.Scanner) []BenchmarkResult {
	var results []BenchmarkResult

	for scanner.Scan() {
		line := scanner.Text()

		// Accept `go test -json` output as well
		var testEvent map[string]any
		if err := json.Unmarshal([]byte(line), &testEvent); err == nil {
			if output, ok := testEvent["Output"].(string); ok {
				line = output
			}
		}

		matches := benchmarkRegex.FindStringSubmatch(strings.TrimSpace(line))
		if matches == nil {
			continue
		}

		name := matches[1]
		kind, variant := splitName(name)
		if kind == "" {
			continue
		}

		iterations, _ := strconv.Atoi(matches[2])
		nsPerOp, _ := strconv.ParseFloat(matches[3], 64)

		var bytesPerOp, allocsPerOp int64
		if matches[4] != "" {
			bytesPerOp, _ = strconv.ParseInt(matches[4], 10, 64)
		}
		if matches[5] != "" {
			allocsPerOp, _ = strconv.ParseInt(matches[5], 10, 64)
		}

		results = append(results, BenchmarkResult{
			Name:        name,
			Kind:        kind,
			Variant:     variant,
			Iterations:  iterations,
			NsPerOp:     nsPerOp,
			BytesPerOp:  bytesPerOp,
			AllocsPerOp: allocsPerOp,
		})
	}

	return results
}

// splitName parses Benchmark<Kind>_<Variant>[-procs].
func splitName(name string) (kind, variant string) {
	name = strings.TrimPrefix(name, "Benchmark")
	if i := strings.LastIndex(name, "-"); i > 0 {
		if _, err := strconv.Atoi(name[i+1:]); err == nil {
			name = name[:i]
		}
	}
	kind, variant, ok := strings.Cut(name, "_")
	if !ok {
		return "", ""
	}
	return kind, variant
}

func generateComparisons(results []BenchmarkResult) []ComparisonResult {
	baselines := make(map[string]BenchmarkResult)
	for _, r := range results {
		if r.Variant == baselineVariant {
			baselines[r.Kind] = r
		}
	}

	var comparisons []ComparisonResult
	for _, r := range results {
		if r.Variant == baselineVariant {
			continue
		}
		c := ComparisonResult{
			Kind:        r.Kind,
			Variant:     r.Variant,
			AllocNs:     r.NsPerOp,
			AllocMem:    r.BytesPerOp,
			AllocAllocs: r.AllocsPerOp,
		}
		if heap, ok := baselines[r.Kind]; ok && r.NsPerOp > 0 {
			c.HeapNs = heap.NsPerOp
			c.HeapMem = heap.BytesPerOp
			c.HeapAllocs = heap.AllocsPerOp
			c.Speedup = heap.NsPerOp / r.NsPerOp
		} else {
			c.BaselineLess = true
		}
		comparisons = append(comparisons, c)
	}

	sort.Slice(comparisons, func(i, j int) bool {
		if comparisons[i].Kind != comparisons[j].Kind {
			return comparisons[i].Kind < comparisons[j].Kind
		}
		return comparisons[i].Variant < comparisons[j].Variant
	})

	return comparisons
}

func generateMarkdownReport(comparisons []ComparisonResult, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Allocator Benchmark Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", now.Format("2006-01-02 15:04:05"))

	faster, slower, comparable := 0, 0, 0
	for _, c := range comparisons {
		if c.BaselineLess {
			continue
		}
		comparable++
		if c.Speedup >= 1.0 {
			faster++
		} else {
			slower++
		}
	}

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- **Total benchmarks**: %d\n", len(comparisons))
	fmt.Fprintf(&sb, "- **With heap baseline**: %d\n", comparable)
	fmt.Fprintf(&sb, "  - allocator faster: %d\n", faster)
	fmt.Fprintf(&sb, "  - Go heap faster: %d\n\n", slower)

	sb.WriteString("## Detailed Results\n\n")
	sb.WriteString("| Kind | Benchmark | Allocator (ns/op) | Go heap (ns/op) | Speedup | Memory (B/op) | Allocs |\n")
	sb.WriteString("|------|-----------|-------------------|-----------------|---------|---------------|--------|\n")

	for _, c := range comparisons {
		if c.BaselineLess {
			fmt.Fprintf(&sb, "| %s | %s | %s | *N/A* | *no baseline* | %s | %d |\n",
				c.Kind, c.Variant, formatNumber(c.AllocNs),
				humanize.IBytes(uint64(c.AllocMem)), c.AllocAllocs)
			continue
		}
		indicator := "✓"
		if c.Speedup < 1.0 {
			indicator = "✗"
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %.2fx %s | %s vs %s | %d vs %d |\n",
			c.Kind, c.Variant, formatNumber(c.AllocNs), formatNumber(c.HeapNs), c.Speedup, indicator,
			humanize.IBytes(uint64(c.AllocMem)), humanize.IBytes(uint64(c.HeapMem)),
			c.AllocAllocs, c.HeapAllocs)
	}

	return sb.String()
}

func formatNumber(n float64) string {
	if n >= 1000 {
		return humanize.Commaf(float64(int64(n)))
	}
	return strconv.FormatFloat(n, 'f', 2, 64)
}
