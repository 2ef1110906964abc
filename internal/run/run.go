package run

import (
	"fmt"

	"github.com/aalhour/tierkv/internal/entry"
	"github.com/aalhour/tierkv/internal/filter"
	"github.com/aalhour/tierkv/internal/vfs"
)

// Run is a sealed, immutable sorted run file.
//
// Reads open the backing file per access and close it before returning,
// so a Run holds no file handle between operations. Get and Range
// return entries in ascending key order, never fabricate keys, and
// return tombstones as-is to the caller.
type Run struct {
	fs      vfs.FS
	path    string
	maxSize int64
	size    int64
	bloom   *filter.Bloom
}

// Size returns the number of entries in the run.
func (r *Run) Size() int64 {
	return r.size
}

// MaxSize returns the run's capacity in entries.
func (r *Run) MaxSize() int64 {
	return r.maxSize
}

// Path returns the backing file path.
func (r *Run) Path() string {
	return r.path
}

// FileSize returns the length of the backing file in bytes.
func (r *Run) FileSize() int64 {
	return r.size * entry.Size
}

// Get returns the value stored for key, including the tombstone
// sentinel. The Bloom filter is consulted first; on a filter miss no
// I/O is performed.
func (r *Run) Get(key entry.Key) (entry.Value, bool, error) {
	if r.size == 0 || !r.bloom.MayContain(key) {
		return 0, false, nil
	}

	f, err := r.fs.OpenRandomAccess(r.path)
	if err != nil {
		return 0, false, fmt.Errorf("run: open %s: %w", r.path, err)
	}
	defer f.Close()

	i, e, err := r.search(f, key)
	if err != nil {
		return 0, false, err
	}
	if i == r.size || e.Key != key {
		return 0, false, nil
	}
	return e.Val, true, nil
}

// Range returns the contiguous slice of entries whose keys fall in
// [lo, hi], both bounds inclusive, in ascending key order.
func (r *Run) Range(lo, hi entry.Key) ([]entry.Entry, error) {
	if r.size == 0 || hi < lo {
		return nil, nil
	}

	f, err := r.fs.OpenRandomAccess(r.path)
	if err != nil {
		return nil, fmt.Errorf("run: open %s: %w", r.path, err)
	}
	defer f.Close()

	// Binary search both ends: first index with key >= lo, then first
	// index with key > hi.
	start, _, err := r.search(f, lo)
	if err != nil {
		return nil, err
	}
	end, e, err := r.search(f, hi)
	if err != nil {
		return nil, err
	}
	if end < r.size && e.Key == hi {
		end++
	}
	if start >= end {
		return nil, nil
	}
	return r.readSlice(f, start, end)
}

// ReadAll returns every entry in the run in ascending key order.
func (r *Run) ReadAll() ([]entry.Entry, error) {
	if r.size == 0 {
		return nil, nil
	}
	f, err := r.fs.OpenRandomAccess(r.path)
	if err != nil {
		return nil, fmt.Errorf("run: open %s: %w", r.path, err)
	}
	defer f.Close()
	return r.readSlice(f, 0, r.size)
}

// Remove deletes the backing file. The run must not be used afterwards.
func (r *Run) Remove() error {
	return r.fs.Remove(r.path)
}

// search returns the index of the first entry with key >= target, along
// with that entry (undefined when the index equals r.size).
func (r *Run) search(f vfs.RandomAccessFile, target entry.Key) (int64, entry.Entry, error) {
	lo, hi := int64(0), r.size
	var found entry.Entry
	for lo < hi {
		mid := lo + (hi-lo)/2
		e, err := r.entryAt(f, mid)
		if err != nil {
			return 0, entry.Entry{}, err
		}
		if e.Key < target {
			lo = mid + 1
		} else {
			hi = mid
			found = e
		}
	}
	return lo, found, nil
}

func (r *Run) entryAt(f vfs.RandomAccessFile, i int64) (entry.Entry, error) {
	var buf [entry.Size]byte
	if _, err := f.ReadAt(buf[:], i*entry.Size); err != nil {
		return entry.Entry{}, fmt.Errorf("run: read %s @%d: %w", r.path, i, err)
	}
	return entry.Decode(buf[:]), nil
}

func (r *Run) readSlice(f vfs.RandomAccessFile, start, end int64) ([]entry.Entry, error) {
	buf := make([]byte, (end-start)*entry.Size)
	if _, err := f.ReadAt(buf, start*entry.Size); err != nil {
		return nil, fmt.Errorf("run: read %s [%d,%d): %w", r.path, start, end, err)
	}
	entries := make([]entry.Entry, end-start)
	for i := range entries {
		entries[i] = entry.Decode(buf[i*entry.Size:])
	}
	return entries, nil
}
