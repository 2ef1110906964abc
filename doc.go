// Package tierkv implements an embedded log-structured merge-tree
// key-value storage engine over fixed-width 32-bit signed integer keys
// and values.
//
// Writes land in an in-memory sorted buffer. When the buffer fills it
// is flushed as an immutable sorted run file prepended to level 0 of a
// leveled run hierarchy. A full level is compacted by merging all of
// its runs, newest-first, into a single new run at the next level;
// compaction cascades downward and deletion tombstones are eliminated
// only when merging into the deepest level. Point reads consult the
// buffer, then race a fixed pool of workers across the runs — skipping
// runs whose Bloom filter rejects the key and terminating early once a
// hit at a more recent run exists. Range reads fan out over all runs
// and reconcile overlapping results by recency.
//
// Basic usage:
//
//	db, err := tierkv.Open("/tmp/demo", &tierkv.Options{
//		BufferEntries: 1 << 16,
//		Depth:         5,
//		Fanout:        10,
//	})
//	if err != nil { ... }
//	defer db.Close()
//
//	_ = db.Put(1, 10)
//	v, ok, _ := db.Get(1)  // 10, true
//	_ = db.Delete(1)
//
// The engine assumes a single writer: Put, Delete, Load and Close must
// run on one goroutine. Get, Range and Stats parallelize internally but
// must not overlap mutations. Crash recovery, WAL and multi-process
// access are out of scope; the data directory is scratch space that a
// fresh Open reclaims.
package tierkv
