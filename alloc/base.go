package alloc

import (
	"log/slog"

	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/tracker"
)

// base carries the lifecycle and bookkeeping shared by all allocators.
// The zero value is uninitialized.
type base struct {
	id    int
	kind  tracker.Kind
	ready bool

	reg *tracker.Registry
	log *slog.Logger
}

// ID returns the allocator id, or -1 before Init succeeds.
func (b *base) ID() int {
	if !b.ready {
		return -1
	}
	return b.id
}

// prepare records the kind and logger so Init failures can be logged.
func (b *base) prepare(kind tracker.Kind, opts *Options) {
	b.kind = kind
	b.log = opts.logger()
}

// setup assigns an id and wires the registry and logger. It must run only
// after every fallible step of Init has succeeded.
func (b *base) setup(kind tracker.Kind, opts *Options) {
	b.kind = kind
	b.id = opts.ids().Next(kind)
	b.reg = opts.Registry
	b.log = opts.logger()
	b.ready = true
}

func (b *base) publish(stats tracker.Stats) {
	if b.reg != nil {
		b.reg.TrackAllocator(b.id, stats)
	}
}

func (b *base) track(addr Addr, size int, tag string) {
	if b.reg != nil {
		b.reg.StartTracking(b.kind, b.id, addr, uint64(size), tagOrDefault(tag))
	}
}

func (b *base) untrack(addr Addr) {
	if b.reg != nil {
		b.reg.StopTracking(addr)
	}
}

// fail logs a rejected operation and returns err unchanged.
func (b *base) fail(op string, err error, attrs ...any) error {
	lg := b.log
	if lg == nil {
		lg = logger.L
	}
	args := append([]any{"kind", b.kind, "id", b.ID(), "err", err}, attrs...)
	lg.Debug(op+" failed", args...)
	return err
}

// teardown removes the allocator and its records from the registry and
// returns the base to the uninitialized state.
func (b *base) teardown() {
	if b.reg != nil {
		b.reg.RemoveAllocator(b.id, b.kind)
		if n := b.reg.ForgetAllocations(b.kind, b.id); n > 0 {
			b.log.Debug("dropped live records on close", "kind", b.kind, "id", b.id, "records", n)
		}
	}
	*b = base{kind: b.kind}
}
