package dict

import (
	"encoding/binary"
	"math/bits"
)

const (
	// groupSize is the number of metadata tags one probe step inspects.
	groupSize = 32
	groupMask = groupSize - 1
	// tailMirror is the number of padding bytes behind the last tag.
	// They replicate the first 31 tags, so a full group load starting
	// anywhere in the table stays in bounds.
	tailMirror = groupSize - 1

	loBits uint64 = 0x0101010101010101
	hiBits uint64 = 0x8080808080808080

	// gatherMSBs compresses a MSB-per-byte mask into the top byte of
	// the product, one result bit per source byte. The partial products
	// never collide, so no carries corrupt the result.
	gatherMSBs uint64 = 0x0002040810204081
)

// tagOf derives the metadata byte for a hash value. The high bit marks
// the slot occupied, the low seven hash bits are a filter that rejects
// most foreign slots without loading the bucket array.
func tagOf(hash uint64) uint8 {
	return 0x80 | uint8(hash&0x7f)
}

// matchBytes reports the bytes of 'w' equal to the byte replicated over
// 'pattern', as a mask with the high bit of every matching byte set.
// see: https://graphics.stanford.edu/~seander/bithacks.html#ZeroInWord
func matchBytes(w, pattern uint64) uint64 {
	x := w ^ pattern
	return (x - loBits) &^ x & hiBits
}

// compress folds a MSB-per-byte mask into one bit per byte.
func compress(msbs uint64) uint32 {
	return uint32((msbs * gatherMSBs) >> 56)
}

// matchGroup scans the 32 tags starting at the group aligned index
// 'base' with four wide loads. Bit i of 'match' is set if the tag at
// base+i equals 'tag', bit i of 'empty' if that slot is free.
func (m *Map[K, V]) matchGroup(base uintptr, tag uint8) (match, empty uint32) {
	pattern := loBits * uint64(tag)
	for w := uintptr(0); w < groupSize/8; w++ {
		word := binary.LittleEndian.Uint64(m.tags[base+8*w:])
		match |= compress(matchBytes(word, pattern)) << (8 * w)
		empty |= compress(matchBytes(word, 0)) << (8 * w)
	}
	return match, empty
}

// findIndex locates the slot holding 'key', probing group wise from the
// home bucket. Every group is filtered against the tag of the hash and
// only filter hits are verified, first on the cached hash, then on the
// key itself. An empty slot at or behind the home bucket terminates the
// probe, backward shifting on remove guarantees that no element of the
// chain sits behind such a gap.
func (m *Map[K, V]) findIndex(key K, hash uint64) (uintptr, bool) {
	var (
		home   = uintptr(hash) & m.capMinus1
		base   = home &^ uintptr(groupMask)
		offset = home & groupMask
		tag    = tagOf(hash)
	)

	for probed := uintptr(0); probed <= m.capMinus1; probed += groupSize {
		match, empty := m.matchGroup(base, tag)
		for ; match != 0; match &= match - 1 {
			idx := base + uintptr(bits.TrailingZeros32(match))
			if m.buckets[idx].hash == hash && m.eq(m.buckets[idx].key, key) {
				return idx, true
			}
		}
		// empty slots below the home offset belong to foreign probe
		// chains and cannot terminate this one (first group only)
		if empty >>= offset; empty != 0 {
			return 0, false
		}

		base = (base + groupSize) & m.capMinus1
		offset = 0
	}
	return 0, false
}
