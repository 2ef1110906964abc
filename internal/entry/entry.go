// Package entry defines the fixed-width key-value record stored by tierkv.
//
// Every record is exactly 8 bytes on disk: a signed 32-bit key followed by
// a signed 32-bit value, both little-endian. Ordering and equality of
// entries are by key alone; the value never participates in comparison.
//
// The value Tombstone (-2^31) is reserved as the deletion sentinel and is
// never a legal user value. Valid user values occupy [-2^31+1, 2^31-1].
package entry

import (
	"encoding/binary"
	"math"
)

// Key is a 32-bit signed record key.
type Key int32

// Value is a 32-bit signed record value.
type Value int32

// Key and value bounds.
const (
	MinKey Key = math.MinInt32
	MaxKey Key = math.MaxInt32

	// Tombstone marks a deleted key. It is reserved: writing it through
	// the engine is equivalent to deleting the key.
	Tombstone Value = math.MinInt32

	// MinValue and MaxValue bound the legal user value range.
	MinValue Value = math.MinInt32 + 1
	MaxValue Value = math.MaxInt32
)

// Size is the encoded size of an Entry in bytes.
const Size = 8

// Entry is a single key-value record.
type Entry struct {
	Key Key
	Val Value
}

// IsTombstone reports whether the entry marks a deletion.
func (e Entry) IsTombstone() bool {
	return e.Val == Tombstone
}

// Less reports whether e orders before other. Ordering is by key alone.
func (e Entry) Less(other Entry) bool {
	return e.Key < other.Key
}

// Encode writes the 8-byte little-endian representation of e into dst.
// dst must have room for Size bytes.
func (e Entry) Encode(dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(e.Key))
	binary.LittleEndian.PutUint32(dst[4:8], uint32(e.Val))
}

// Append appends the encoded form of e to dst and returns the result.
func (e Entry) Append(dst []byte) []byte {
	var buf [Size]byte
	e.Encode(buf[:])
	return append(dst, buf[:]...)
}

// Decode reads an Entry from the first Size bytes of src.
func Decode(src []byte) Entry {
	return Entry{
		Key: Key(binary.LittleEndian.Uint32(src[0:4])),
		Val: Value(binary.LittleEndian.Uint32(src[4:8])),
	}
}
