package tierkv

// flush.go implements the write path behind a full buffer: flushing the
// buffer into a new level-0 run and the cascading merge-down compaction
// that makes room for it.

import (
	"fmt"

	"github.com/aalhour/tierkv/internal/logging"
	"github.com/aalhour/tierkv/internal/merge"
	"github.com/aalhour/tierkv/internal/run"
)

// flushBuffer seals the buffer's entries into a new run prepended to
// level 0, compacting level 0 downward first if it is full, then
// empties the buffer.
func (db *DB) flushBuffer() error {
	if err := db.mergeDown(0); err != nil {
		return err
	}

	lvl := db.levels[0]
	b, err := run.NewBuilder(db.fs, db.newRunPath(), lvl.MaxRunSize(), db.opts.BitsPerEntry)
	if err != nil {
		return fmt.Errorf("tierkv: flush: %w", err)
	}
	// The buffer is already sorted ascending; stream it through.
	for _, e := range db.buf.Entries() {
		b.Add(e)
	}
	newRun, err := b.Finish()
	if err != nil {
		return fmt.Errorf("tierkv: flush: %w", err)
	}
	lvl.Prepend(newRun)
	db.buf.Clear()

	db.logger.Debugf(logging.NSFlush+"flushed %d entries to %s", newRun.Size(), newRun.Path())
	return nil
}

// mergeDown ensures level i can accept one more run, recursively
// compacting it into level i+1 when it is full. Merging into the
// deepest level drops tombstones; anywhere shallower they are written
// through so they keep shadowing older values. The new run becomes
// visible only after a successful seal, and the source runs (and their
// files) are dropped only after that.
func (db *DB) mergeDown(i int) error {
	lvl := db.levels[i]
	if lvl.Remaining() > 0 {
		return nil
	}
	if i == len(db.levels)-1 {
		db.logger.Errorf(logging.NSCompact+"level %d full and deepest: tree is out of space", i)
		return ErrNoSpace
	}

	next := db.levels[i+1]
	if next.Remaining() == 0 {
		if err := db.mergeDown(i + 1); err != nil {
			return err
		}
		if next.Remaining() == 0 {
			panic("tierkv: merge-down left no space in next level")
		}
	}

	// Register sources newest-first so merge precedence matches recency.
	var mc merge.Context
	for _, r := range lvl.Runs() {
		entries, err := r.ReadAll()
		if err != nil {
			return fmt.Errorf("tierkv: compact level %d: %w", i, err)
		}
		mc.Add(entries)
	}

	b, err := run.NewBuilder(db.fs, db.newRunPath(), next.MaxRunSize(), db.opts.BitsPerEntry)
	if err != nil {
		return fmt.Errorf("tierkv: compact level %d: %w", i, err)
	}

	intoDeepest := i+1 == len(db.levels)-1
	for !mc.Done() {
		e := mc.Next()
		if intoDeepest && e.IsTombstone() {
			continue
		}
		b.Add(e)
	}

	newRun, err := b.Finish()
	if err != nil {
		return fmt.Errorf("tierkv: compact level %d: %w", i, err)
	}
	next.Prepend(newRun)
	if err := lvl.Clear(); err != nil {
		// The merged data is already safe in the new run; losing a
		// source file removal is not fatal to correctness.
		db.logger.Warnf(logging.NSCompact+"level %d: %v", i, err)
	}

	db.logger.Debugf(logging.NSCompact+"level %d -> %d: %d entries in %s",
		i, i+1, newRun.Size(), newRun.Path())
	return nil
}
