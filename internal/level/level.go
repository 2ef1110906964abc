// Package level groups runs into the capacity-bounded tiers of the LSM
// tree.
//
// A level is an ordered sequence of runs, newest at the front. It holds
// no merge policy of its own; the engine decides when a level is
// compacted into the next one.
package level

import (
	"fmt"

	"github.com/aalhour/tierkv/internal/run"
)

// Level is one tier of the run hierarchy.
//
// Invariants: len(runs) <= MaxRuns, and every run in the level holds at
// most MaxRunSize entries. Runs are ordered front-to-back from newest
// to oldest.
type Level struct {
	maxRuns    int
	maxRunSize int64
	runs       []*run.Run
}

// New creates an empty level accepting at most maxRuns runs of at most
// maxRunSize entries each.
func New(maxRuns int, maxRunSize int64) *Level {
	return &Level{
		maxRuns:    maxRuns,
		maxRunSize: maxRunSize,
		runs:       make([]*run.Run, 0, maxRuns),
	}
}

// MaxRuns returns the level's run capacity.
func (l *Level) MaxRuns() int {
	return l.maxRuns
}

// MaxRunSize returns the per-run entry capacity of this level.
func (l *Level) MaxRunSize() int64 {
	return l.maxRunSize
}

// Runs returns the level's runs, newest first. The slice is shared with
// the level and valid until the next Prepend or Clear.
func (l *Level) Runs() []*run.Run {
	return l.runs
}

// NumRuns returns the number of runs currently in the level.
func (l *Level) NumRuns() int {
	return len(l.runs)
}

// Remaining returns how many more runs the level can hold.
func (l *Level) Remaining() int {
	return l.maxRuns - len(l.runs)
}

// Prepend pushes r to the front of the level as its newest run.
// Prepending onto a full level is a caller bug.
func (l *Level) Prepend(r *run.Run) {
	if l.Remaining() == 0 {
		panic("level: prepend onto full level")
	}
	l.runs = append([]*run.Run{r}, l.runs...)
}

// Clear drops every run in the level and removes their backing files.
// All removals are attempted; the first error is returned.
func (l *Level) Clear() error {
	var firstErr error
	for _, r := range l.runs {
		if err := r.Remove(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.runs = l.runs[:0]
	if firstErr != nil {
		return fmt.Errorf("level: clear: %w", firstErr)
	}
	return nil
}
