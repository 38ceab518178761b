// Package logger holds the default structured logger used by the allocators.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// L is the global logger instance. It discards all output by default.
// Call Init() to enable logging, or set MEMKIT_LOG_ALLOC to get debug output
// on stderr from process start.
var L *slog.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// EnvVar enables debug logging to stderr when set to a non-empty value.
const EnvVar = "MEMKIT_LOG_ALLOC"

func init() {
	if os.Getenv(EnvVar) != "" {
		L = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Output  io.Writer  // Destination. Default: os.Stderr
	Level   slog.Level // Minimum log level. Default: LevelInfo
	JSON    bool       // Emit JSON instead of key=value text
}

// Init configures logging.
// If opts.Enabled is false, all log output is discarded.
func Init(opts Options) {
	L = New(opts)
}

// New builds a logger from opts without touching L.
func New(opts Options) *slog.Logger {
	if !opts.Enabled {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(out, ho))
	}
	return slog.New(slog.NewTextHandler(out, ho))
}
