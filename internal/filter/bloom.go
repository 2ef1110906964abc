// Package filter implements the per-run Bloom filter used to skip runs
// during point lookups.
//
// The filter is a flat bit array probed by exactly three independent
// 64-bit hashes of the key, each reduced modulo the bit-array length.
// Add sets three bits; MayContain reports true iff all three are set.
// False positives are possible and are absorbed by the exact check in
// the run; false negatives are not.
//
// The three hashes are XXH3 over the key's 4-byte little-endian
// encoding, under three distinct seeds.
package filter

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/xxh3"

	"github.com/aalhour/tierkv/internal/entry"
)

// Probe seeds. Any three distinct seeds yield three independent hashes;
// these are arbitrary odd 64-bit constants.
const (
	seed1 = 0x9e3779b97f4a7c15
	seed2 = 0xc2b2ae3d27d4eb4f
	seed3 = 0x165667b19e3779f9
)

// Bloom is a probabilistic membership filter over record keys.
// The zero value is not usable; construct with New or NewForEntries.
type Bloom struct {
	bits  []uint64
	nbits uint64
}

// New creates a filter with the given number of bits. A non-positive
// length is clamped to one bit.
func New(nbits int64) *Bloom {
	if nbits < 1 {
		nbits = 1
	}
	return &Bloom{
		bits:  make([]uint64, (nbits+63)/64),
		nbits: uint64(nbits),
	}
}

// NewForEntries creates a filter sized at ceil(bitsPerEntry * maxEntries)
// bits, the sizing rule used for every run filter.
func NewForEntries(bitsPerEntry float64, maxEntries int64) *Bloom {
	return New(int64(math.Ceil(bitsPerEntry * float64(maxEntries))))
}

// NumBits returns the length of the bit array.
func (f *Bloom) NumBits() int64 {
	return int64(f.nbits)
}

// Add sets the three probe bits for key.
func (f *Bloom) Add(key entry.Key) {
	h1, h2, h3 := f.probes(key)
	f.set(h1)
	f.set(h2)
	f.set(h3)
}

// MayContain reports whether key may be in the set. A false result means
// the key is definitely absent; a true result may be a false positive.
func (f *Bloom) MayContain(key entry.Key) bool {
	h1, h2, h3 := f.probes(key)
	return f.isSet(h1) && f.isSet(h2) && f.isSet(h3)
}

func (f *Bloom) probes(key entry.Key) (uint64, uint64, uint64) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(key))
	h1 := xxh3.HashSeed(buf[:], seed1) % f.nbits
	h2 := xxh3.HashSeed(buf[:], seed2) % f.nbits
	h3 := xxh3.HashSeed(buf[:], seed3) % f.nbits
	return h1, h2, h3
}

func (f *Bloom) set(pos uint64) {
	f.bits[pos>>6] |= 1 << (pos & 63)
}

func (f *Bloom) isSet(pos uint64) bool {
	return f.bits[pos>>6]&(1<<(pos&63)) != 0
}
