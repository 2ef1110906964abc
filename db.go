package tierkv

// db.go implements the engine handle and the read path: Open, Close,
// Put, Delete, Get and Range. The flush and compaction write path lives
// in flush.go, bulk loading in load.go and statistics in stats.go.

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aalhour/tierkv/internal/buffer"
	"github.com/aalhour/tierkv/internal/entry"
	"github.com/aalhour/tierkv/internal/level"
	"github.com/aalhour/tierkv/internal/logging"
	"github.com/aalhour/tierkv/internal/merge"
	"github.com/aalhour/tierkv/internal/pool"
	"github.com/aalhour/tierkv/internal/run"
	"github.com/aalhour/tierkv/internal/vfs"
)

// Key is a 32-bit signed record key.
type Key = entry.Key

// Value is a 32-bit signed record value.
type Value = entry.Value

// Entry is a single key-value record.
type Entry = entry.Entry

// Tombstone is the reserved deletion sentinel. Putting it is equivalent
// to deleting the key.
const Tombstone = entry.Tombstone

// runFileSuffix is the extension of run files inside the data directory.
const runFileSuffix = ".run"

// DB is an open tierkv engine.
//
// Mutations (Put, Delete, Load) and Close must be issued from a single
// goroutine. Get, Range and Stats fan work out across the engine's
// worker pool internally, but must not run concurrently with a
// mutation: reads observe a point-in-time snapshot precisely because
// they run between writes on the driver goroutine.
type DB struct {
	opts   Options
	dir    string
	fs     vfs.FS
	logger logging.Logger

	buf    *buffer.Buffer
	levels []*level.Level
	pool   *pool.WorkerPool

	nextRunID uint64
	closed    atomic.Bool
}

// Open creates or reopens the engine rooted at dir.
//
// Level i is built with run capacity BufferEntries * Fanout^i. Crash
// recovery is out of scope: stale run files left behind by an earlier
// process are deleted so the engine always starts empty.
func Open(dir string, opts *Options) (*DB, error) {
	o := opts.sanitize()

	if err := o.FS.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tierkv: open %s: %w", dir, err)
	}
	if err := removeStaleRuns(o.FS, dir); err != nil {
		return nil, fmt.Errorf("tierkv: open %s: %w", dir, err)
	}

	levels := make([]*level.Level, o.Depth)
	maxRunSize := int64(o.BufferEntries)
	for i := range levels {
		levels[i] = level.New(o.Fanout, maxRunSize)
		maxRunSize *= int64(o.Fanout)
	}

	db := &DB{
		opts:   o,
		dir:    dir,
		fs:     o.FS,
		logger: o.Logger,
		buf:    buffer.New(o.BufferEntries),
		levels: levels,
		pool:   pool.NewWorkerPool(o.Workers),
	}
	db.logger.Infof(logging.NSDB+"opened %s: buffer=%d depth=%d fanout=%d workers=%d bits-per-entry=%g",
		dir, o.BufferEntries, o.Depth, o.Fanout, o.Workers, o.BitsPerEntry)
	return db, nil
}

// removeStaleRuns deletes run files left behind by a previous process.
func removeStaleRuns(fs vfs.FS, dir string) error {
	names, err := fs.ListDir(dir)
	if err != nil {
		return err
	}
	for _, name := range names {
		if strings.HasSuffix(name, runFileSuffix) {
			if err := fs.Remove(filepath.Join(dir, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close shuts the engine down: the worker pool is drained and joined.
// Run files are left in place; the next Open reclaims them. Close is
// idempotent.
func (db *DB) Close() error {
	if db.closed.Swap(true) {
		return nil
	}
	db.pool.Close()
	db.logger.Infof(logging.NSDB+"closed %s", db.dir)
	return nil
}

// newRunPath reserves the path for the next run file.
func (db *DB) newRunPath() string {
	id := db.nextRunID
	db.nextRunID++
	return filepath.Join(db.dir, fmt.Sprintf("%06d%s", id, runFileSuffix))
}

// Put writes a key-value pair. Writing Tombstone is equivalent to
// Delete. When the buffer is full of other keys, it is flushed to a new
// level-0 run first — cascading a compaction if level 0 is full — and
// the write lands in the emptied buffer.
func (db *DB) Put(key Key, val Value) error {
	if db.closed.Load() {
		return ErrDBClosed
	}
	if db.buf.Put(key, val) {
		return nil
	}
	if err := db.flushBuffer(); err != nil {
		return err
	}
	if !db.buf.Put(key, val) {
		panic("tierkv: insert into empty buffer failed")
	}
	return nil
}

// Delete removes a key by writing the tombstone sentinel. The tombstone
// shadows older values down the hierarchy and is eliminated only when a
// compaction reaches the deepest level.
func (db *DB) Delete(key Key) error {
	return db.Put(key, Tombstone)
}

// allRuns returns every run in the tree ordered newest-first: levels in
// index order, runs within a level front-to-back.
func (db *DB) allRuns() []*run.Run {
	var runs []*run.Run
	for _, lvl := range db.levels {
		runs = append(runs, lvl.Runs()...)
	}
	return runs
}

// Get returns the value stored for key. The buffer answers first; on a
// buffer miss the runs are searched newest-first by the worker pool,
// with early termination once the key has been found: a worker that
// claims a run index above the newest hit so far can never produce a
// more recent value, so it stops without probing. A tombstone result
// reports a miss.
func (db *DB) Get(key Key) (Value, bool, error) {
	if db.closed.Load() {
		return 0, false, ErrDBClosed
	}

	if val, ok := db.buf.Get(key); ok {
		if val == Tombstone {
			return 0, false, nil
		}
		return val, true, nil
	}

	runs := db.allRuns()
	if len(runs) == 0 {
		return 0, false, nil
	}

	var (
		counter   atomic.Int64
		mu        sync.Mutex
		latestRun = -1
		latestVal Value
		firstErr  error
	)

	var search func()
	search = func() {
		c := int(counter.Add(1) - 1)

		mu.Lock()
		stop := (latestRun >= 0 && latestRun < c) || firstErr != nil
		mu.Unlock()
		if stop || c >= len(runs) {
			// Stop: the key was found in a more recent run, a worker
			// failed, or there are no more runs to claim.
			return
		}

		val, ok, err := runs[c].Get(key)
		switch {
		case err != nil:
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		case !ok:
			// Not in this run; re-queue to claim the next one.
			db.pool.Submit(search)
		default:
			mu.Lock()
			if latestRun < 0 || c < latestRun {
				latestRun = c
				latestVal = val
			}
			mu.Unlock()
		}
	}

	db.pool.Launch(search)
	db.pool.WaitAll()

	if firstErr != nil {
		return 0, false, fmt.Errorf("tierkv: get %d: %w", key, firstErr)
	}
	if latestRun >= 0 && latestVal != Tombstone {
		return latestVal, true, nil
	}
	return 0, false, nil
}

// Range returns the live entries with keys in [lo, hi), ascending,
// reconciled by recency across the buffer and every run. Deleted keys
// are excluded. An empty or inverted interval yields no entries.
//
// Unlike Get there is no early termination: every run contributes its
// subrange before the results are merged.
func (db *DB) Range(lo, hi Key) ([]Entry, error) {
	if db.closed.Load() {
		return nil, ErrDBClosed
	}
	if hi <= lo {
		return nil, nil
	}
	hiIncl := hi - 1

	runs := db.allRuns()

	// results[0] is the buffer's subrange; results[i+1] is run i's.
	// Ascending slot order is exactly newest-first priority order.
	results := make([][]entry.Entry, len(runs)+1)
	results[0] = db.buf.Range(lo, hiIncl)

	var (
		counter  atomic.Int64
		mu       sync.Mutex
		firstErr error
	)

	var search func()
	search = func() {
		c := int(counter.Add(1) - 1)
		if c >= len(runs) {
			return
		}
		sub, err := runs[c].Range(lo, hiIncl)
		mu.Lock()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			results[c+1] = sub
		}
		mu.Unlock()
		if err == nil {
			db.pool.Submit(search)
		}
	}

	db.pool.Launch(search)
	db.pool.WaitAll()

	if firstErr != nil {
		return nil, fmt.Errorf("tierkv: range [%d,%d): %w", lo, hi, firstErr)
	}

	var mc merge.Context
	for _, sub := range results {
		mc.Add(sub)
	}

	var out []Entry
	for !mc.Done() {
		e := mc.Next()
		if !e.IsTombstone() {
			out = append(out, e)
		}
	}
	return out, nil
}

// RangeTimed runs Range and reports the elapsed wall-clock time.
func (db *DB) RangeTimed(lo, hi Key) ([]Entry, time.Duration, error) {
	start := time.Now()
	entries, err := db.Range(lo, hi)
	return entries, time.Since(start), err
}

// Dir returns the engine's data directory.
func (db *DB) Dir() string {
	return db.dir
}
