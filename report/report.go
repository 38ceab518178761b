// Package report renders registry snapshots for people and tools.
//
// Text output is a tab-aligned table of allocators followed, optionally, by
// one line per live allocation. JSON output is the tracker.Snapshot itself.
//
//	report.Write(os.Stdout, reg.Snapshot(), report.DefaultOptions())
package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/memkit/tracker"
)

// Options controls rendering.
type Options struct {
	JSON        bool         // Emit the snapshot as indented JSON
	Allocations bool         // Include live allocation records
	Raw         bool         // Exact byte counts instead of IEC sizes
	Language    language.Tag // Number formatting. Default: language.English
}

// DefaultOptions returns text output without allocation records.
func DefaultOptions() Options {
	return Options{Language: language.English}
}

// Row is one allocator line of the report.
type Row struct {
	Kind      tracker.Kind
	ID        int
	Usage     tracker.Usage
	NumBlocks int // pools only
}

// Rows flattens the allocator maps of snap, ordered by kind then id.
func Rows(snap tracker.Snapshot) []Row {
	rows := make([]Row, 0, len(snap.Stack)+len(snap.Pool)+len(snap.Buddy))
	for id, s := range snap.Stack {
		rows = append(rows, Row{Kind: tracker.KindStack, ID: id, Usage: s.Usage})
	}
	for id, s := range snap.Pool {
		rows = append(rows, Row{Kind: tracker.KindPool, ID: id, Usage: s.Usage, NumBlocks: s.NumBlocks})
	}
	for id, s := range snap.Buddy {
		rows = append(rows, Row{Kind: tracker.KindBuddy, ID: id, Usage: s.Usage})
	}
	slices.SortFunc(rows, func(a, b Row) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.ID, b.ID))
	})
	return rows
}

// Records returns the live allocations of snap ordered by address.
func Records(snap tracker.Snapshot) []tracker.Record {
	recs := make([]tracker.Record, 0, len(snap.Allocations))
	for _, r := range snap.Allocations {
		recs = append(recs, r)
	}
	slices.SortFunc(recs, func(a, b tracker.Record) int {
		return cmp.Compare(a.Addr, b.Addr)
	})
	return recs
}

// Write renders snap to w.
func Write(w io.Writer, snap tracker.Snapshot, opts Options) error {
	if opts.JSON {
		return writeJSON(w, snap, opts)
	}
	return writeText(w, snap, opts)
}

// WriteRegistry renders a fresh snapshot of reg.
func WriteRegistry(w io.Writer, reg *tracker.Registry, opts Options) error {
	return Write(w, reg.Snapshot(), opts)
}

func writeJSON(w io.Writer, snap tracker.Snapshot, opts Options) error {
	if !opts.Allocations {
		snap.Allocations = nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("report: encode snapshot: %w", err)
	}
	return nil
}

func writeText(w io.Writer, snap tracker.Snapshot, opts Options) error {
	lang := opts.Language
	if lang == language.Und {
		lang = language.English
	}
	p := message.NewPrinter(lang)
	size := func(n uint64) string {
		if opts.Raw {
			return p.Sprintf("%d", n)
		}
		return humanize.IBytes(n)
	}

	rows := Rows(snap)
	var total tracker.Usage

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tID\tCAPACITY\tUSED\tFREE\tUSE%\tBLOCKS")
	for _, r := range rows {
		blocks := "-"
		if r.Kind == tracker.KindPool {
			blocks = p.Sprintf("%d", r.NumBlocks)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			r.Kind, r.ID,
			size(r.Usage.Capacity), size(r.Usage.UsedBytes), size(r.Usage.Free()),
			p.Sprintf("%.1f%%", percent(r.Usage)), blocks)
		total.Capacity += r.Usage.Capacity
		total.UsedBytes += r.Usage.UsedBytes
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if _, err := p.Fprintf(w, "\n%d allocators, %d live allocations, %s of %s in use (%.1f%%)\n",
		len(rows), len(snap.Allocations),
		size(total.UsedBytes), size(total.Capacity), percent(total)); err != nil {
		return err
	}

	if !opts.Allocations || len(snap.Allocations) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDR\tKIND\tID\tSIZE\tAGE\tTAG")
	for _, r := range Records(snap) {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			r.Addr, r.Kind, r.AllocatorID, size(r.Size), age(snap.TakenAt, r.CreatedAt), r.Tag)
	}
	return tw.Flush()
}

func percent(u tracker.Usage) float64 {
	if u.Capacity == 0 {
		return 0
	}
	return float64(u.UsedBytes) * 100 / float64(u.Capacity)
}

func age(now, created time.Time) string {
	if created.IsZero() || now.Before(created) {
		return "-"
	}
	return now.Sub(created).Truncate(time.Millisecond).String()
}
