package level

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aalhour/tierkv/internal/entry"
	"github.com/aalhour/tierkv/internal/run"
	"github.com/aalhour/tierkv/internal/vfs"
)

func newRun(t *testing.T, dir, name string, first entry.Key) *run.Run {
	t.Helper()
	b, err := run.NewBuilder(vfs.Default(), filepath.Join(dir, name), 4, 10)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	b.Add(entry.Entry{Key: first, Val: entry.Value(first)})
	r, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return r
}

func TestPrependOrdersNewestFirst(t *testing.T) {
	dir := t.TempDir()
	l := New(3, 4)

	r1 := newRun(t, dir, "1.run", 1)
	r2 := newRun(t, dir, "2.run", 2)
	r3 := newRun(t, dir, "3.run", 3)
	l.Prepend(r1)
	l.Prepend(r2)
	l.Prepend(r3)

	runs := l.Runs()
	if len(runs) != 3 {
		t.Fatalf("NumRuns = %d, want 3", len(runs))
	}
	// Front to back: newest to oldest.
	if runs[0] != r3 || runs[1] != r2 || runs[2] != r1 {
		t.Error("runs not ordered newest-first after Prepend")
	}
}

func TestRemaining(t *testing.T) {
	dir := t.TempDir()
	l := New(2, 4)

	if got := l.Remaining(); got != 2 {
		t.Errorf("Remaining = %d, want 2", got)
	}
	l.Prepend(newRun(t, dir, "1.run", 1))
	if got := l.Remaining(); got != 1 {
		t.Errorf("Remaining = %d, want 1", got)
	}
	l.Prepend(newRun(t, dir, "2.run", 2))
	if got := l.Remaining(); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
}

func TestPrependFullPanics(t *testing.T) {
	dir := t.TempDir()
	l := New(1, 4)
	l.Prepend(newRun(t, dir, "1.run", 1))

	defer func() {
		if recover() == nil {
			t.Error("Prepend onto a full level did not panic")
		}
	}()
	l.Prepend(newRun(t, dir, "2.run", 2))
}

func TestClearRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	l := New(2, 4)
	r1 := newRun(t, dir, "1.run", 1)
	r2 := newRun(t, dir, "2.run", 2)
	l.Prepend(r1)
	l.Prepend(r2)

	if err := l.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if l.NumRuns() != 0 {
		t.Errorf("NumRuns after Clear = %d, want 0", l.NumRuns())
	}
	for _, p := range []string{r1.Path(), r2.Path()} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("run file %s still exists after Clear", p)
		}
	}
}

func TestConfiguredCapacities(t *testing.T) {
	l := New(4, 1024)
	if l.MaxRuns() != 4 {
		t.Errorf("MaxRuns = %d, want 4", l.MaxRuns())
	}
	if l.MaxRunSize() != 1024 {
		t.Errorf("MaxRunSize = %d, want 1024", l.MaxRunSize())
	}
}
