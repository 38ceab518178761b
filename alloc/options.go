package alloc

import (
	"log/slog"

	"github.com/joshuapare/memkit/internal/arena"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/tracker"
)

// Backing selects where arena memory comes from.
type Backing = arena.Backing

const (
	// BackingHeap keeps arenas in Go byte slices.
	BackingHeap = arena.Heap

	// BackingMapped keeps arenas in anonymous mappings outside the Go heap,
	// where the platform supports it.
	BackingMapped = arena.Mapped
)

// Options configures an allocator at Init time.
//
// A nil *Options behaves like DefaultOptions().
type Options struct {
	// Registry receives stats and allocation records. Nil disables tracking.
	// Default: nil
	Registry *tracker.Registry

	// IDs hands out allocator ids. When nil the registry's generator is used,
	// and without a registry a process-wide generator.
	// Default: nil
	IDs *tracker.IDGenerator

	// Logger receives failure diagnostics. Default: logger.L
	Logger *slog.Logger

	// Backing selects heap or mapped arenas.
	// Default: BackingHeap
	Backing Backing
}

// DefaultOptions returns untracked, heap-backed options.
func DefaultOptions() *Options {
	return &Options{
		Backing: BackingHeap,
	}
}

// defaultIDs serves allocators configured without a registry or generator.
var defaultIDs = tracker.NewIDGenerator()

func (o *Options) ids() *tracker.IDGenerator {
	switch {
	case o.IDs != nil:
		return o.IDs
	case o.Registry != nil:
		return o.Registry.IDs()
	default:
		return defaultIDs
	}
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logger.L
}

func resolve(opts *Options) *Options {
	if opts == nil {
		return DefaultOptions()
	}
	return opts
}
