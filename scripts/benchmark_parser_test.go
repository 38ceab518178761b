package main

import (
	"bufio"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutput = `goos: linux
goarch: amd64
pkg: github.com/joshuapare/memkit/alloc
BenchmarkPool_RequestFree-8         	   10000	     20000 ns/op	       0 B/op	       0 allocs/op
BenchmarkPool_HeapBaseline-8        	    5000	     60000 ns/op	   64000 B/op	    1000 allocs/op
BenchmarkBuddy_Tracked-8            	  500000	       250.5 ns/op	     128 B/op	       2 allocs/op
{"Action":"output","Output":"BenchmarkStack_RequestReset-8   \t 20000\t 5000 ns/op\t 0 B/op\t 0 allocs/op\n"}
PASS
`

func TestParseBenchmarks(t *testing.T) {
	results := parseBenchmarks(bufio.NewScanner(strings.NewReader(sampleOutput)))
	require.Len(t, results, 4)

	assert.Equal(t, "Pool", results[0].Kind)
	assert.Equal(t, "RequestFree", results[0].Variant)
	assert.Equal(t, 10000, results[0].Iterations)
	assert.InDelta(t, 20000, results[0].NsPerOp, 0.01)

	assert.Equal(t, int64(64000), results[1].BytesPerOp)
	assert.Equal(t, int64(1000), results[1].AllocsPerOp)
	assert.InDelta(t, 250.5, results[2].NsPerOp, 0.01)
	assert.Equal(t, "Stack", results[3].Kind, "json events are unwrapped")
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		in, kind, variant string
	}{
		{"BenchmarkPool_RequestFree-8", "Pool", "RequestFree"},
		{"BenchmarkStack_HeapBaseline", "Stack", "HeapBaseline"},
		{"BenchmarkNoVariant-4", "", ""},
	}
	for _, tt := range tests {
		kind, variant := splitName(tt.in)
		assert.Equal(t, tt.kind, kind, tt.in)
		assert.Equal(t, tt.variant, variant, tt.in)
	}
}

func TestGenerateComparisons(t *testing.T) {
	results := parseBenchmarks(bufio.NewScanner(strings.NewReader(sampleOutput)))
	comparisons := generateComparisons(results)
	require.Len(t, comparisons, 3)

	assert.Equal(t, "Buddy", comparisons[0].Kind)
	assert.True(t, comparisons[0].BaselineLess)

	pool := comparisons[1]
	assert.Equal(t, "Pool", pool.Kind)
	assert.False(t, pool.BaselineLess)
	assert.InDelta(t, 3.0, pool.Speedup, 0.001)

	report := generateMarkdownReport(comparisons, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Contains(t, report, "Generated: 2024-01-02 03:04:05")
	assert.Contains(t, report, "| Pool | RequestFree | 20,000 | 60,000 | 3.00x ✓ |")
	assert.Contains(t, report, "*no baseline*")
}
