package filter

import (
	"testing"

	"github.com/aalhour/tierkv/internal/entry"
)

func TestNoFalseNegatives(t *testing.T) {
	f := NewForEntries(10, 1000)

	for k := entry.Key(-500); k < 500; k++ {
		f.Add(k)
	}
	for k := entry.Key(-500); k < 500; k++ {
		if !f.MayContain(k) {
			t.Fatalf("MayContain(%d) = false for an added key", k)
		}
	}
}

func TestFalsePositiveRate(t *testing.T) {
	const n = 1000
	f := NewForEntries(10, n)

	for k := entry.Key(0); k < n; k++ {
		f.Add(k)
	}

	// With 10 bits per entry and three probes the expected false
	// positive rate is under 2%; allow a wide margin.
	falsePositives := 0
	const probes = 10000
	for k := entry.Key(n); k < n+probes; k++ {
		if f.MayContain(k) {
			falsePositives++
		}
	}
	if rate := float64(falsePositives) / probes; rate > 0.10 {
		t.Errorf("false positive rate = %.3f, want <= 0.10", rate)
	}
}

func TestEmptyFilterRejects(t *testing.T) {
	f := NewForEntries(10, 100)
	hits := 0
	for k := entry.Key(0); k < 100; k++ {
		if f.MayContain(k) {
			hits++
		}
	}
	if hits != 0 {
		t.Errorf("empty filter reported %d keys present", hits)
	}
}

func TestSizing(t *testing.T) {
	cases := []struct {
		bitsPerEntry float64
		maxEntries   int64
		wantBits     int64
	}{
		{10, 100, 1000},
		{5, 2, 10},
		{0.5, 3, 2},   // ceil(1.5)
		{2.5, 3, 8},   // ceil(7.5)
		{10, 0, 1},    // clamped to one bit
		{0.001, 1, 1}, // ceil(0.001)
	}
	for _, tc := range cases {
		f := NewForEntries(tc.bitsPerEntry, tc.maxEntries)
		if got := f.NumBits(); got != tc.wantBits {
			t.Errorf("NewForEntries(%g, %d).NumBits() = %d, want %d",
				tc.bitsPerEntry, tc.maxEntries, got, tc.wantBits)
		}
	}
}

func TestTinyFilterNeverFalseNegative(t *testing.T) {
	// A one-bit filter saturates immediately but must still answer true
	// for every added key.
	f := New(1)
	f.Add(7)
	if !f.MayContain(7) {
		t.Error("one-bit filter lost an added key")
	}
}

func TestNegativeKeys(t *testing.T) {
	f := NewForEntries(10, 16)
	keys := []entry.Key{-1, -2147483648, 2147483647, 0}
	for _, k := range keys {
		f.Add(k)
	}
	for _, k := range keys {
		if !f.MayContain(k) {
			t.Errorf("MayContain(%d) = false for an added key", k)
		}
	}
}
