package tierkv

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/aalhour/tierkv/internal/logging"
)

// testOptions are the small-geometry options used across engine tests:
// a two-entry buffer, two levels of fanout two, two workers.
func testOptions() *Options {
	return &Options{
		BufferEntries: 2,
		Depth:         2,
		Fanout:        2,
		Workers:       2,
		BitsPerEntry:  5,
		Logger:        logging.Discard,
	}
}

func openTestDB(t *testing.T, opts *Options) *DB {
	t.Helper()
	if opts == nil {
		opts = testOptions()
	}
	db, err := Open(t.TempDir(), opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustPut(t *testing.T, db *DB, k Key, v Value) {
	t.Helper()
	if err := db.Put(k, v); err != nil {
		t.Fatalf("Put(%d, %d): %v", k, v, err)
	}
}

func mustGet(t *testing.T, db *DB, k Key) (Value, bool) {
	t.Helper()
	v, ok, err := db.Get(k)
	if err != nil {
		t.Fatalf("Get(%d): %v", k, err)
	}
	return v, ok
}

func mustRange(t *testing.T, db *DB, lo, hi Key) []Entry {
	t.Helper()
	entries, err := db.Range(lo, hi)
	if err != nil {
		t.Fatalf("Range(%d, %d): %v", lo, hi, err)
	}
	return entries
}

func TestPutGet(t *testing.T) {
	db := openTestDB(t, nil)

	mustPut(t, db, 1, 10)
	mustPut(t, db, 2, 20)

	if v, ok := mustGet(t, db, 1); !ok || v != 10 {
		t.Errorf("Get(1) = (%d, %v), want (10, true)", v, ok)
	}
	if _, ok := mustGet(t, db, 3); ok {
		t.Error("Get(3) found a key that was never put")
	}
}

func TestFlushOnThirdInsert(t *testing.T) {
	db := openTestDB(t, nil)

	mustPut(t, db, 1, 10)
	mustPut(t, db, 2, 20)
	mustPut(t, db, 3, 30) // buffer is full of {1,2}: flush, then stage 3

	// Buffer now holds only key 3; level 0 holds one run of [1, 2].
	if got := db.buf.Len(); got != 1 {
		t.Errorf("buffer holds %d entries, want 1", got)
	}
	if got := db.levels[0].NumRuns(); got != 1 {
		t.Fatalf("level 0 holds %d runs, want 1", got)
	}
	if got := db.levels[0].Runs()[0].Size(); got != 2 {
		t.Errorf("level-0 run holds %d entries, want 2", got)
	}

	// All three keys remain visible.
	for _, tc := range []struct {
		k Key
		v Value
	}{{1, 10}, {2, 20}, {3, 30}} {
		if v, ok := mustGet(t, db, tc.k); !ok || v != tc.v {
			t.Errorf("Get(%d) = (%d, %v), want (%d, true)", tc.k, v, ok, tc.v)
		}
	}
}

func TestUpdateInBuffer(t *testing.T) {
	db := openTestDB(t, nil)

	mustPut(t, db, 1, 10)
	mustPut(t, db, 1, 99)

	if v, ok := mustGet(t, db, 1); !ok || v != 99 {
		t.Errorf("Get(1) = (%d, %v), want (99, true)", v, ok)
	}
	// The update replaced in place: no flush happened.
	if got := db.levels[0].NumRuns(); got != 0 {
		t.Errorf("level 0 holds %d runs, want 0", got)
	}
}

func TestUpdateAtCapacityDoesNotFlush(t *testing.T) {
	db := openTestDB(t, nil)

	mustPut(t, db, 1, 10)
	mustPut(t, db, 2, 20) // buffer full
	mustPut(t, db, 2, 22) // update must not trigger a flush

	if got := db.levels[0].NumRuns(); got != 0 {
		t.Errorf("updating an existing key at capacity flushed (%d runs)", got)
	}
	if v, _ := mustGet(t, db, 2); v != 22 {
		t.Errorf("Get(2) = %d, want 22", v)
	}
}

func TestDelete(t *testing.T) {
	db := openTestDB(t, nil)

	mustPut(t, db, 1, 10)
	if err := db.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, ok := mustGet(t, db, 1); ok {
		t.Error("Get(1) found a deleted key")
	}
	if got := mustRange(t, db, 0, 5); len(got) != 0 {
		t.Errorf("Range over a deleted key = %v, want empty", got)
	}
}

func TestPutTombstoneActsAsDelete(t *testing.T) {
	db := openTestDB(t, nil)

	mustPut(t, db, 1, 10)
	mustPut(t, db, 1, Tombstone)

	if _, ok := mustGet(t, db, 1); ok {
		t.Error("Get(1) found a key deleted via a direct tombstone put")
	}
}

func TestDeleteShadowsOlderRun(t *testing.T) {
	db := openTestDB(t, nil)

	// Push 1 into a run, then delete it from the buffer side.
	mustPut(t, db, 1, 10)
	mustPut(t, db, 2, 20)
	mustPut(t, db, 3, 30) // flush [1,2]
	if err := db.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, ok := mustGet(t, db, 1); ok {
		t.Error("tombstone in buffer failed to shadow the run value")
	}
	want := []Entry{{Key: 2, Val: 20}, {Key: 3, Val: 30}}
	if diff := cmp.Diff(want, mustRange(t, db, 0, 10)); diff != "" {
		t.Errorf("Range mismatch (-want +got):\n%s", diff)
	}
}

func TestRangeMergesAllSources(t *testing.T) {
	db := openTestDB(t, nil)

	// Updates spread across flushed runs and the buffer.
	mustPut(t, db, 1, 10)
	mustPut(t, db, 2, 20)
	mustPut(t, db, 3, 30)
	mustPut(t, db, 2, 22)
	mustPut(t, db, 4, 40)
	mustPut(t, db, 5, 50)

	want := []Entry{
		{Key: 1, Val: 10},
		{Key: 2, Val: 22},
		{Key: 3, Val: 30},
		{Key: 4, Val: 40},
		{Key: 5, Val: 50},
	}
	if diff := cmp.Diff(want, mustRange(t, db, 1, 6)); diff != "" {
		t.Errorf("Range(1, 6) mismatch (-want +got):\n%s", diff)
	}
}

func TestRangeBoundaries(t *testing.T) {
	db := openTestDB(t, nil)
	mustPut(t, db, 1, 10)
	mustPut(t, db, 2, 20)

	if got := mustRange(t, db, 5, 5); len(got) != 0 {
		t.Errorf("Range(5, 5) = %v, want empty", got)
	}
	if got := mustRange(t, db, 5, 3); len(got) != 0 {
		t.Errorf("Range(5, 3) = %v, want empty", got)
	}

	// range(k, k+1) sees exactly what get(k) sees.
	want := []Entry{{Key: 1, Val: 10}}
	if diff := cmp.Diff(want, mustRange(t, db, 1, 2)); diff != "" {
		t.Errorf("Range(1, 2) mismatch (-want +got):\n%s", diff)
	}
}

func TestHiExclusive(t *testing.T) {
	db := openTestDB(t, nil)
	mustPut(t, db, 1, 10)
	mustPut(t, db, 2, 20)

	got := mustRange(t, db, 1, 2)
	if len(got) != 1 || got[0].Key != 1 {
		t.Errorf("Range(1, 2) = %v, want only key 1", got)
	}
}

func TestCascadingCompaction(t *testing.T) {
	// B=2, depth=3, fanout=2: level 0 runs hold 2 entries, level 1
	// runs 4, level 2 runs 8. Insert distinct keys until compactions
	// cascade, then verify everything is still readable.
	opts := testOptions()
	opts.Depth = 3
	db := openTestDB(t, opts)

	const n = 20
	for k := Key(0); k < n; k++ {
		mustPut(t, db, k, Value(k*10))
	}

	for k := Key(0); k < n; k++ {
		v, ok := mustGet(t, db, k)
		if !ok || v != Value(k*10) {
			t.Errorf("Get(%d) = (%d, %v), want (%d, true)", k, v, ok, k*10)
		}
	}

	// Level invariants: no level over capacity, no oversized runs.
	for i, lvl := range db.levels {
		if lvl.NumRuns() > lvl.MaxRuns() {
			t.Errorf("level %d holds %d runs, max %d", i, lvl.NumRuns(), lvl.MaxRuns())
		}
		for _, r := range lvl.Runs() {
			if r.Size() > lvl.MaxRunSize() {
				t.Errorf("level %d run holds %d entries, max %d", i, r.Size(), lvl.MaxRunSize())
			}
		}
	}
}

func TestNoSpace(t *testing.T) {
	// Two levels of fanout 2 with B=2 hold at most 2*2 + 2*4 = 12
	// entries in runs plus 2 in the buffer. Distinct keys must
	// eventually exhaust the tree with ErrNoSpace.
	db := openTestDB(t, nil)

	var sawNoSpace bool
	for k := Key(0); k < 100; k++ {
		if err := db.Put(k, 1); err != nil {
			if !errors.Is(err, ErrNoSpace) {
				t.Fatalf("Put(%d) = %v, want ErrNoSpace", k, err)
			}
			sawNoSpace = true
			break
		}
	}
	if !sawNoSpace {
		t.Error("tree never reported ErrNoSpace")
	}
}

func TestTombstoneEliminatedAtDeepestLevel(t *testing.T) {
	// Drive one deterministic merge into the (empty) deepest level with
	// a tombstone shadowing an older value in the merged set.
	db := openTestDB(t, nil)

	mustPut(t, db, 0, 0)
	mustPut(t, db, 1, 10)
	mustPut(t, db, 2, 20) // flush run [0:0, 1:10]
	if err := db.Delete(0); err != nil {
		t.Fatalf("Delete(0): %v", err)
	}
	if err := db.Delete(1); err != nil { // flush run [0:ts, 2:20]
		t.Fatalf("Delete(1): %v", err)
	}
	mustPut(t, db, 3, 30)
	// Level 0 is full; this flush first merges it into the deepest
	// level, where the key-0 tombstone shadows 0:0 and is dropped.
	mustPut(t, db, 4, 40) // flush run [1:ts, 3:30]

	deepest := db.levels[len(db.levels)-1]
	if deepest.NumRuns() != 1 {
		t.Fatalf("deepest level holds %d runs, want 1", deepest.NumRuns())
	}
	entries, err := deepest.Runs()[0].ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []Entry{{Key: 1, Val: 10}, {Key: 2, Val: 20}}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("deepest run mismatch (-want +got):\n%s", diff)
	}

	// Key 0 is gone everywhere; key 1's newer tombstone still shadows
	// the merged value from level 0.
	if _, ok := mustGet(t, db, 0); ok {
		t.Error("Get(0) resurrected a deleted key")
	}
	if _, ok := mustGet(t, db, 1); ok {
		t.Error("Get(1) ignored a tombstone above the deepest level")
	}
	wantRange := []Entry{{Key: 2, Val: 20}, {Key: 3, Val: 30}, {Key: 4, Val: 40}}
	if diff := cmp.Diff(wantRange, mustRange(t, db, 0, 10)); diff != "" {
		t.Errorf("Range mismatch (-want +got):\n%s", diff)
	}
}

func TestReputAfterDelete(t *testing.T) {
	// Delete an older key that lives in a run, then re-put
	// it with a new value.
	db := openTestDB(t, nil)

	mustPut(t, db, 1, 10)
	mustPut(t, db, 2, 20)
	mustPut(t, db, 3, 30) // flush [1,2]
	if err := db.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	mustPut(t, db, 1, 77)

	if v, ok := mustGet(t, db, 1); !ok || v != 77 {
		t.Errorf("Get(1) = (%d, %v), want (77, true)", v, ok)
	}
	got := mustRange(t, db, 1, 2)
	if len(got) != 1 || got[0].Val != 77 {
		t.Errorf("Range(1, 2) = %v, want the re-put value 77", got)
	}
}

// TestReplayEquivalence replays a random operation sequence against the
// engine and a map model, then checks every touched key.
func TestReplayEquivalence(t *testing.T) {
	// Deep geometry: compaction never reaches the deepest level here,
	// so deletions behave like a map throughout. Tombstone elimination
	// at the deepest level is exercised separately.
	opts := testOptions()
	opts.Depth = 10
	opts.BufferEntries = 4
	db := openTestDB(t, opts)

	rng := rand.New(rand.NewSource(1))
	model := make(map[Key]Value)

	for i := 0; i < 2000; i++ {
		k := Key(rng.Intn(64))
		if rng.Intn(4) == 0 {
			if err := db.Delete(k); err != nil {
				t.Fatalf("Delete(%d): %v", k, err)
			}
			delete(model, k)
		} else {
			v := Value(rng.Intn(1000))
			mustPut(t, db, k, v)
			model[k] = v
		}
	}

	for k := Key(0); k < 64; k++ {
		gotV, gotOK := mustGet(t, db, k)
		wantV, wantOK := model[k]
		if gotOK != wantOK || (gotOK && gotV != wantV) {
			t.Errorf("Get(%d) = (%d, %v), want (%d, %v)", k, gotV, gotOK, wantV, wantOK)
		}
	}

	// Range over everything must agree with the sorted live model.
	var want []Entry
	for k := Key(0); k < 64; k++ {
		if v, ok := model[k]; ok {
			want = append(want, Entry{Key: k, Val: v})
		}
	}
	if diff := cmp.Diff(want, mustRange(t, db, 0, 64)); diff != "" {
		t.Errorf("full range mismatch (-want +got):\n%s", diff)
	}
}

func TestClosedDB(t *testing.T) {
	db := openTestDB(t, nil)
	mustPut(t, db, 1, 10)
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := db.Put(1, 10); !errors.Is(err, ErrDBClosed) {
		t.Errorf("Put on closed DB = %v, want ErrDBClosed", err)
	}
	if _, _, err := db.Get(1); !errors.Is(err, ErrDBClosed) {
		t.Errorf("Get on closed DB = %v, want ErrDBClosed", err)
	}
	if _, err := db.Range(0, 10); !errors.Is(err, ErrDBClosed) {
		t.Errorf("Range on closed DB = %v, want ErrDBClosed", err)
	}
	if _, err := db.Stats(); !errors.Is(err, ErrDBClosed) {
		t.Errorf("Stats on closed DB = %v, want ErrDBClosed", err)
	}

	// Close is idempotent.
	if err := db.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestOpenCleansStaleRuns(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir, testOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for k := Key(0); k < 6; k++ {
		mustPut(t, db, k, Value(k))
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A fresh engine over the same directory starts empty.
	db2, err := Open(dir, testOptions())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	if _, ok := mustGet(t, db2, 0); ok {
		t.Error("reopened engine observed stale data")
	}
	if got := mustRange(t, db2, 0, 100); len(got) != 0 {
		t.Errorf("reopened engine range = %v, want empty", got)
	}
}

func TestGetPrefersNewerRun(t *testing.T) {
	// Same key in two runs of level 0; the newer one wins.
	db := openTestDB(t, nil)

	mustPut(t, db, 1, 10)
	mustPut(t, db, 2, 20)
	mustPut(t, db, 3, 30) // flush 1: [1:10, 2:20]
	mustPut(t, db, 1, 11) // update 1 in buffer
	mustPut(t, db, 4, 40) // flush 2: [1:11, 3:30] ... buffer {4}

	if v, ok := mustGet(t, db, 1); !ok || v != 11 {
		t.Errorf("Get(1) = (%d, %v), want the newer value 11", v, ok)
	}
}

func TestDefaultsApplied(t *testing.T) {
	db, err := Open(t.TempDir(), &Options{Logger: logging.Discard})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if got := len(db.levels); got != DefaultDepth {
		t.Errorf("depth = %d, want %d", got, DefaultDepth)
	}
	if got := db.levels[0].MaxRunSize(); got != DefaultBufferEntries {
		t.Errorf("level-0 run size = %d, want %d", got, DefaultBufferEntries)
	}
	if got := db.levels[1].MaxRunSize(); got != DefaultBufferEntries*DefaultFanout {
		t.Errorf("level-1 run size = %d, want %d", got, DefaultBufferEntries*DefaultFanout)
	}
	if got := db.pool.Size(); got != DefaultWorkers {
		t.Errorf("workers = %d, want %d", got, DefaultWorkers)
	}
}
