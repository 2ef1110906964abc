// Package run implements the immutable sorted run files of the LSM tree.
//
// A run is a contiguous file of fixed-width records in strictly
// ascending key order — no header, no footer, no index. The file length
// is always 8 * size bytes. Each run carries an in-memory Bloom filter
// sized at ceil(bitsPerEntry * maxSize) bits, populated while the run
// is built and consulted before any on-disk point lookup.
//
// Runs are built through a Builder, sealed exactly once with Finish
// (the commit point: a run that was never sealed must never become
// visible), and read through the Run type afterwards.
package run

import (
	"bufio"
	"fmt"

	"github.com/aalhour/tierkv/internal/entry"
	"github.com/aalhour/tierkv/internal/filter"
	"github.com/aalhour/tierkv/internal/vfs"
)

// Builder accumulates entries into a new run file.
//
// Entries must be appended in strictly ascending key order and must not
// exceed the run's capacity; violations are caller bugs and panic.
type Builder struct {
	fs      vfs.FS
	path    string
	file    vfs.WritableFile
	w       *bufio.Writer
	maxSize int64
	size    int64
	last    entry.Key
	bloom   *filter.Bloom
	err     error
}

// NewBuilder creates the run file at path and returns a builder for a
// run holding at most maxSize entries, with a Bloom filter sized at
// bitsPerEntry bits per slot.
func NewBuilder(fs vfs.FS, path string, maxSize int64, bitsPerEntry float64) (*Builder, error) {
	file, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("run: create %s: %w", path, err)
	}
	return &Builder{
		fs:      fs,
		path:    path,
		file:    file,
		w:       bufio.NewWriter(file),
		maxSize: maxSize,
		bloom:   filter.NewForEntries(bitsPerEntry, maxSize),
	}, nil
}

// Add appends e to the run and sets its Bloom bits.
//
// Keys must strictly ascend and the run must not be full; both are
// protocol violations by the caller and panic. I/O errors are sticky
// and surfaced by Finish.
func (b *Builder) Add(e entry.Entry) {
	if b.size == b.maxSize {
		panic("run: append past capacity")
	}
	if b.size > 0 && e.Key <= b.last {
		panic(fmt.Sprintf("run: out-of-order append: key %d after %d", e.Key, b.last))
	}
	b.last = e.Key
	b.size++
	b.bloom.Add(e.Key)

	if b.err != nil {
		return
	}
	var buf [entry.Size]byte
	e.Encode(buf[:])
	if _, err := b.w.Write(buf[:]); err != nil {
		b.err = err
	}
}

// Size returns the number of entries appended so far.
func (b *Builder) Size() int64 {
	return b.size
}

// Finish flushes and closes the run file and returns the sealed,
// readable Run. Finish is the commit point: on error the partial file
// is removed and no run becomes visible.
func (b *Builder) Finish() (*Run, error) {
	err := b.err
	if err == nil {
		err = b.w.Flush()
	}
	if err == nil {
		err = b.file.Sync()
	}
	if cerr := b.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = b.fs.Remove(b.path)
		return nil, fmt.Errorf("run: seal %s: %w", b.path, err)
	}
	return &Run{
		fs:      b.fs,
		path:    b.path,
		maxSize: b.maxSize,
		size:    b.size,
		bloom:   b.bloom,
	}, nil
}

// Abandon closes the builder and removes the partial file. Use on error
// paths where the run must not become visible.
func (b *Builder) Abandon() {
	_ = b.file.Close()
	_ = b.fs.Remove(b.path)
}
