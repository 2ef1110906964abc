package tierkv

// options.go implements engine configuration options.

import (
	"github.com/aalhour/tierkv/internal/logging"
	"github.com/aalhour/tierkv/internal/vfs"
)

// Logger is an alias for the logging.Logger interface.
// This allows users to pass their own logger implementation.
type Logger = logging.Logger

// Default option values.
const (
	// DefaultBufferEntries is the default write buffer capacity.
	DefaultBufferEntries = 1 << 16

	// DefaultDepth is the default number of levels.
	DefaultDepth = 5

	// DefaultFanout is the default size ratio between adjacent levels,
	// and the run capacity of every level.
	DefaultFanout = 10

	// DefaultWorkers is the default number of search workers.
	DefaultWorkers = 4

	// DefaultBitsPerEntry is the default Bloom filter density
	// (10 bits per entry gives roughly a 1.7% false positive rate with
	// three probes).
	DefaultBitsPerEntry = 10.0
)

// Options configures the engine. The zero value is usable: every field
// left at its zero value is replaced by its default during Open.
type Options struct {
	// BufferEntries is the write buffer capacity B, in entries. Level i
	// holds runs of B * Fanout^i entries.
	// Default: DefaultBufferEntries.
	BufferEntries int

	// Depth is the number of levels D. When a compaction reaches a full
	// deepest level, writes fail with ErrNoSpace.
	// Default: DefaultDepth.
	Depth int

	// Fanout is the size ratio F between adjacent levels. Each level
	// holds at most F runs.
	// Default: DefaultFanout.
	Fanout int

	// Workers is the number of threads T racing point and range
	// searches across runs.
	// Default: DefaultWorkers.
	Workers int

	// BitsPerEntry is the Bloom filter density α. Every run's filter is
	// sized at ceil(BitsPerEntry * capacity) bits.
	// Default: DefaultBitsPerEntry.
	BitsPerEntry float64

	// Logger receives engine diagnostics.
	// Default: a WARN-level logger on stderr.
	Logger Logger

	// FS is the filesystem used for run files and bulk-load dumps.
	// Default: the OS filesystem.
	FS vfs.FS
}

// sanitize returns a copy of o with defaults applied. A nil receiver
// yields all defaults.
func (o *Options) sanitize() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.BufferEntries <= 0 {
		out.BufferEntries = DefaultBufferEntries
	}
	if out.Depth <= 0 {
		out.Depth = DefaultDepth
	}
	if out.Fanout <= 1 {
		out.Fanout = DefaultFanout
	}
	if out.Workers <= 0 {
		out.Workers = DefaultWorkers
	}
	if out.BitsPerEntry <= 0 {
		out.BitsPerEntry = DefaultBitsPerEntry
	}
	out.Logger = logging.OrDefault(out.Logger)
	if out.FS == nil {
		out.FS = vfs.Default()
	}
	return out
}
