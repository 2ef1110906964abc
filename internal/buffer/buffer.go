// Package buffer implements the in-memory sorted write buffer that
// stages entries before they are flushed into level-0 runs.
//
// The buffer holds at most one entry per key in ascending key order.
// It is mutated only from the engine's driver goroutine; it needs no
// internal locking.
package buffer

import (
	"sort"

	"github.com/aalhour/tierkv/internal/entry"
)

// Buffer is a sorted set of pending writes, keyed by key, with a fixed
// capacity in entries.
type Buffer struct {
	maxSize int
	entries []entry.Entry
}

// New creates an empty buffer holding at most maxSize entries.
func New(maxSize int) *Buffer {
	return &Buffer{
		maxSize: maxSize,
		entries: make([]entry.Entry, 0, maxSize),
	}
}

// MaxSize returns the buffer's capacity in entries.
func (b *Buffer) MaxSize() int {
	return b.maxSize
}

// Len returns the number of entries currently buffered.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// Put inserts or replaces the entry for key.
//
// Updating a key that is already present always succeeds, even at
// capacity. Inserting a new key into a full buffer returns false,
// signalling the engine to flush; the buffer is unchanged in that case.
func (b *Buffer) Put(key entry.Key, val entry.Value) bool {
	i := b.search(key)
	if i < len(b.entries) && b.entries[i].Key == key {
		b.entries[i].Val = val
		return true
	}
	if len(b.entries) == b.maxSize {
		return false
	}
	b.entries = append(b.entries, entry.Entry{})
	copy(b.entries[i+1:], b.entries[i:])
	b.entries[i] = entry.Entry{Key: key, Val: val}
	return true
}

// Get returns the value buffered for key, including the tombstone
// sentinel.
func (b *Buffer) Get(key entry.Key) (entry.Value, bool) {
	i := b.search(key)
	if i < len(b.entries) && b.entries[i].Key == key {
		return b.entries[i].Val, true
	}
	return 0, false
}

// Range returns a snapshot of the entries with keys in [lo, hi], both
// bounds inclusive, in ascending key order.
func (b *Buffer) Range(lo, hi entry.Key) []entry.Entry {
	if hi < lo {
		return nil
	}
	start := b.search(lo)
	end := b.search(hi)
	if end < len(b.entries) && b.entries[end].Key == hi {
		end++
	}
	if start >= end {
		return nil
	}
	out := make([]entry.Entry, end-start)
	copy(out, b.entries[start:end])
	return out
}

// Entries returns the buffered entries in ascending key order. The
// slice is shared with the buffer and valid until the next mutation.
func (b *Buffer) Entries() []entry.Entry {
	return b.entries
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.entries = b.entries[:0]
}

// search returns the index of the first entry with key >= target.
func (b *Buffer) search(target entry.Key) int {
	return sort.Search(len(b.entries), func(i int) bool {
		return b.entries[i].Key >= target
	})
}
