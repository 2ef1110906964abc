// Package merge implements the k-way merge that reconciles overlapping
// sorted sources by recency.
//
// Sources are registered newest-first; each source receives a
// precedence equal to the count of prior registrations, so a lower
// precedence means more recent data. A min-heap over per-source cursors
// orders entries by (key ascending, precedence ascending). When several
// sources carry the same key, the most recent source's entry wins and
// every other occurrence of that key is discarded.
package merge

import (
	"container/heap"

	"github.com/aalhour/tierkv/internal/entry"
)

// cursor walks one registered source of sorted ascending entries.
type cursor struct {
	entries    []entry.Entry
	pos        int
	precedence int
}

func (c *cursor) head() entry.Entry {
	return c.entries[c.pos]
}

func (c *cursor) done() bool {
	return c.pos == len(c.entries)
}

// Context merges registered sources. The zero value is ready to use.
//
// The Context keeps references into the registered slices; sources must
// stay valid until the merge has run to completion.
type Context struct {
	h          cursorHeap
	registered int
}

// Add registers a source of sorted ascending entries. Its precedence is
// the count of prior registrations, so callers submit newest-first.
// Empty sources are ignored but still consume a precedence slot.
func (c *Context) Add(entries []entry.Entry) {
	prec := c.registered
	c.registered++
	if len(entries) == 0 {
		return
	}
	heap.Push(&c.h, &cursor{entries: entries, precedence: prec})
}

// Next returns the entry with the smallest key across all live sources.
// On a key tie the lowest-precedence source wins and every tied entry
// is consumed. Calling Next when Done is a caller bug.
func (c *Context) Next() entry.Entry {
	winner := c.h.cursors[0].head()

	// Pop every cursor positioned on the winning key, advancing each
	// past it. The first pop is the winner itself; the rest are stale
	// duplicates from older sources.
	for c.h.Len() > 0 && c.h.cursors[0].head().Key == winner.Key {
		cur := heap.Pop(&c.h).(*cursor)
		cur.pos++
		if !cur.done() {
			heap.Push(&c.h, cur)
		}
	}
	return winner
}

// Done reports whether every registered source has been consumed.
func (c *Context) Done() bool {
	return c.h.Len() == 0
}

// cursorHeap is a min-heap ordered by (key, precedence).
type cursorHeap struct {
	cursors []*cursor
}

func (h *cursorHeap) Len() int { return len(h.cursors) }

func (h *cursorHeap) Less(i, j int) bool {
	a, b := h.cursors[i], h.cursors[j]
	if a.head().Key == b.head().Key {
		if a.precedence == b.precedence {
			panic("merge: duplicate source precedence")
		}
		return a.precedence < b.precedence
	}
	return a.head().Key < b.head().Key
}

func (h *cursorHeap) Swap(i, j int) {
	h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i]
}

func (h *cursorHeap) Push(x any) {
	c, ok := x.(*cursor)
	if !ok {
		return
	}
	h.cursors = append(h.cursors, c)
}

func (h *cursorHeap) Pop() any {
	old := h.cursors
	n := len(old)
	c := old[n-1]
	h.cursors = old[:n-1]
	return c
}
