// Package dict implements a flat hash map with one byte metadata tags,
// robin hood placement and block wise probing.
package dict

import (
	"errors"
	"fmt"
)

const (
	// minCapacity is the smallest table size. It equals the probe group
	// size, so even the smallest table serves full group loads.
	minCapacity = groupSize

	resizeFactor   = 2
	defaultMaxLoad = 0.8
)

var (
	// ErrOutOfRange signals an out of range request.
	ErrOutOfRange = errors.New("out of range")

	// ErrNotFound signals that the requested key is not in the map.
	ErrNotFound = errors.New("key not found")
)

// EqualFn reports whether two keys are equal. It must be an equivalence
// relation and consistent with the hash function, equal keys hash equal.
type EqualFn[K any] func(lhs, rhs K) bool

// Item is a key-value pair for batch construction, see `NewFromItems`.
type Item[K comparable, V any] struct {
	Key   K
	Value V
}

// Bucket is one slot of the table. It stores the key-value pair together
// with the cached hash of the key. The cached hash lets resizing and the
// distance bookkeeping run without re-invoking the hash function and
// short-circuits the key comparison on tag collisions. The type is
// exported only so that custom `Allocator` implementations can be
// instantiated for it.
type Bucket[K comparable, V any] struct {
	key   K
	value V
	hash  uint64
}

// Map is a hash map that uses linear probing in combination with robin
// hood hashing as collision strategy, on a power of two table. Parallel
// to the buckets runs a metadata array with one tag byte per slot, zero
// for a free slot, otherwise seven hash bits with the high bit set. A
// lookup filters 32 slots per probe step against the tag before it
// touches any bucket, so probe cost is dominated by group transitions
// rather than per slot work. Removals backward shift the following probe
// chain instead of leaving tombstones.
//
// The map is not safe for concurrent mutation. Any operation that can
// grow the table invalidates iterators and value handles.
type Map[K comparable, V any] struct {
	buckets []Bucket[K, V]
	// tags is the metadata array, index i mirrors bucket i. The array
	// carries 31 extra tail bytes replicating the first 31 tags, so
	// group loads behind the last slot stay in bounds.
	tags   []uint8
	hasher HashFn[K]
	eq     EqualFn[K]

	bucketAlloc Allocator[Bucket[K, V]]
	tagAlloc    Allocator[uint8]

	// length stores the current inserted elements
	length uintptr
	// capMinus1 is used for a bitwise AND on the hash value,
	// because the size of the underlying array is a power of two value
	capMinus1 uintptr
	// growAt is floor(maxLoad * capacity), reaching it forces a resize
	// before the next insert. It stays strictly below the capacity, a
	// full table would probe forever.
	growAt  uintptr
	maxLoad float32
}

// New creates a ready to use `Map` with default settings.
func New[K comparable, V any]() *Map[K, V] {
	return NewWithHasher[K, V](GetHasher[K]())
}

// NewWithHasher same as `New` but with a given hash function. The hash
// is used as is, wrap it with `WithMixer` if its distribution is weak.
func NewWithHasher[K comparable, V any](hasher HashFn[K]) *Map[K, V] {
	return NewWithEquals[K, V](hasher, func(lhs, rhs K) bool { return lhs == rhs })
}

// NewWithEquals same as `NewWithHasher` but with a custom key equality
// relation, for keys with equivalent but not identical representations.
func NewWithEquals[K comparable, V any](hasher HashFn[K], eq EqualFn[K]) *Map[K, V] {
	return newMap[K, V](hasher, eq, heapAllocator[Bucket[K, V]]{}, heapAllocator[uint8]{})
}

// NewWithAllocators same as `NewWithHasher` but the backing arrays are
// acquired from and released to the given allocators.
func NewWithAllocators[K comparable, V any](
	hasher HashFn[K],
	buckets Allocator[Bucket[K, V]],
	tags Allocator[uint8],
) *Map[K, V] {
	return newMap(hasher, func(lhs, rhs K) bool { return lhs == rhs }, buckets, tags)
}

// NewFromItems creates a map holding the given key-value pairs. Later
// duplicates of a key do not overwrite earlier ones.
func NewFromItems[K comparable, V any](items ...Item[K, V]) *Map[K, V] {
	m := New[K, V]()
	m.Reserve(uintptr(len(items)))
	for i := range items {
		m.TryInsert(items[i].Key, items[i].Value)
	}
	return m
}

func newMap[K comparable, V any](
	hasher HashFn[K],
	eq EqualFn[K],
	buckets Allocator[Bucket[K, V]],
	tags Allocator[uint8],
) *Map[K, V] {
	return &Map[K, V]{
		buckets:     buckets.Alloc(minCapacity),
		tags:        tags.Alloc(minCapacity + tailMirror),
		hasher:      hasher,
		eq:          eq,
		bucketAlloc: buckets,
		tagAlloc:    tags,
		capMinus1:   minCapacity - 1,
		growAt:      growThreshold(minCapacity, defaultMaxLoad),
		maxLoad:     defaultMaxLoad,
	}
}

// growThreshold is floor(maxLoad*capacity), clamped so that the table
// never fills up completely.
func growThreshold(capacity uintptr, maxLoad float32) uintptr {
	growAt := uintptr(float64(maxLoad) * float64(capacity))
	if growAt >= capacity {
		growAt = capacity - 1
	}
	if growAt == 0 {
		growAt = 1
	}
	return growAt
}

// setTag writes a metadata tag and keeps the tail mirror in sync.
func (m *Map[K, V]) setTag(idx uintptr, tag uint8) {
	m.tags[idx] = tag
	if idx < tailMirror {
		m.tags[m.capMinus1+1+idx] = tag
	}
}

// distance is how far the slot at idx sits behind the home bucket of
// the given hash, modulo the table size.
func (m *Map[K, V]) distance(idx uintptr, hash uint64) uintptr {
	return (idx - uintptr(hash)) & m.capMinus1
}

// Get returns the value stored for this key, or false if there is no such value.
func (m *Map[K, V]) Get(key K) (V, bool) {
	if idx, found := m.findIndex(key, m.hasher(key)); found {
		return m.buckets[idx].value, true
	}
	var v V
	return v, false
}

// Lookup returns a pointer to the stored value for this key or nil if
// not found. The pointer is valid until an operation grows the table or
// backward shifts the slot. Note, use `Get` for small values.
func (m *Map[K, V]) Lookup(key K) *V {
	if idx, found := m.findIndex(key, m.hasher(key)); found {
		return &m.buckets[idx].value
	}
	return nil
}

// At returns the value stored for this key or ErrNotFound if there is
// no such value.
func (m *Map[K, V]) At(key K) (V, error) {
	if idx, found := m.findIndex(key, m.hasher(key)); found {
		return m.buckets[idx].value, nil
	}
	var v V
	return v, fmt.Errorf("%v: %w", key, ErrNotFound)
}

// Count returns the number of elements stored for this key, zero or one.
func (m *Map[K, V]) Count(key K) int {
	if _, found := m.findIndex(key, m.hasher(key)); found {
		return 1
	}
	return 0
}

// Put maps the given key to the given value. If the key already exists its
// value will be overwritten with the new value.
// Returns true, if the element is a new item in the hash map.
func (m *Map[K, V]) Put(key K, val V) bool {
	hash := m.hasher(key)
	if idx, found := m.findIndex(key, hash); found {
		m.buckets[idx].value = val
		return false // update already existing value
	}

	m.checkGrow()
	m.emplaceNew(Bucket[K, V]{key: key, value: val, hash: hash})
	return true
}

// TryInsert inserts the pair if the key is absent. It returns a pointer
// to the stored value and true on insertion. If the key is already in
// the hash map, its value is left untouched and the pointer refers to
// it. The pointer is valid until an operation grows the table or
// backward shifts the slot.
func (m *Map[K, V]) TryInsert(key K, val V) (*V, bool) {
	hash := m.hasher(key)
	if idx, found := m.findIndex(key, hash); found {
		return &m.buckets[idx].value, false
	}

	m.checkGrow()
	idx := m.emplaceNew(Bucket[K, V]{key: key, value: val, hash: hash})
	return &m.buckets[idx].value, true
}

// Insert returns a pointer to the value stored for the key. If the key
// is absent, a zero value is inserted first. The boolean reports a new
// item. The pointer is valid until an operation grows the table or
// backward shifts the slot.
func (m *Map[K, V]) Insert(key K) (*V, bool) {
	var v V
	return m.TryInsert(key, v)
}

// go:inline
func (m *Map[K, V]) checkGrow() {
	if m.length >= m.growAt {
		m.resize((m.capMinus1 + 1) * resizeFactor)
	}
}

// emplaceNew places a new entry following the Robin Hood creed: "takes
// from the rich and gives to the poor". An incoming entry whose distance
// from home exceeds the distance of a resident steals that slot, the
// displaced resident continues probing one slot further. The result is
// a low variance of all probe sequence lengths.
//
// The key must not be in the map and the table must have a free slot.
// Returns the slot the new entry ended up in.
func (m *Map[K, V]) emplaceNew(current Bucket[K, V]) uintptr {
	var (
		idx      = uintptr(current.hash) & m.capMinus1
		dist     = uintptr(0)
		placedAt uintptr
		placed   bool
	)

	for {
		if m.tags[idx] == 0 {
			// a free slot ends the displacement chain
			m.buckets[idx] = current
			m.setTag(idx, tagOf(current.hash))
			m.length++
			if !placed {
				placedAt = idx
			}
			return placedAt
		}

		if rdist := m.distance(idx, m.buckets[idx].hash); rdist < dist {
			// swap values, apply the Robin Hood creed
			current, m.buckets[idx] = m.buckets[idx], current
			m.setTag(idx, tagOf(m.buckets[idx].hash))
			if !placed {
				placedAt = idx
				placed = true
			}
			dist = rdist
		}

		idx = (idx + 1) & m.capMinus1
		dist++
	}
}

// Remove removes the specified key-value pair from the map.
// Returns true, if the element was in the hash map.
func (m *Map[K, V]) Remove(key K) bool {
	idx, found := m.findIndex(key, m.hasher(key))
	if !found {
		return false
	}
	m.removeAt(idx)
	return true
}

// removeAt frees the slot and backward shifts the following probe chain
// until an empty slot or an element that already sits at its home
// bucket. Every shifted element moves one slot closer to its home, so
// all probe chains stay closed and no tombstones are needed.
func (m *Map[K, V]) removeAt(idx uintptr) {
	m.setTag(idx, 0)

	next := (idx + 1) & m.capMinus1
	for m.tags[next] != 0 && m.distance(next, m.buckets[next].hash) != 0 {
		m.buckets[idx] = m.buckets[next]
		m.setTag(idx, m.tags[next])
		m.setTag(next, 0)
		idx = next
		next = (next + 1) & m.capMinus1
	}

	var free Bucket[K, V]
	m.buckets[idx] = free // drop the references for the garbage collector
	m.length--
}

func (m *Map[K, V]) resize(n uintptr) {
	newm := Map[K, V]{
		buckets:     m.bucketAlloc.Alloc(n),
		tags:        m.tagAlloc.Alloc(n + tailMirror),
		hasher:      m.hasher,
		eq:          m.eq,
		bucketAlloc: m.bucketAlloc,
		tagAlloc:    m.tagAlloc,
		capMinus1:   n - 1,
		growAt:      growThreshold(n, m.maxLoad),
		maxLoad:     m.maxLoad,
	}

	// reinsert from the cached hashes, the keys are not hashed again
	for i := range m.buckets {
		if m.tags[i] != 0 {
			newm.emplaceNew(m.buckets[i])
		}
	}

	m.bucketAlloc.Free(m.buckets)
	m.tagAlloc.Free(m.tags)
	m.buckets = newm.buckets
	m.tags = newm.tags
	m.capMinus1 = newm.capMinus1
	m.growAt = newm.growAt
}

// Reserve sets the number of buckets to the most appropriate to contain
// at least n elements without growing. If n is lower than that, the
// function may have no effect.
func (m *Map[K, V]) Reserve(n uintptr) {
	var (
		needed = uintptr(float64(n) / float64(m.maxLoad))
		newCap = Max(uintptr(NextPowerOf2(uint64(needed))), minCapacity)
	)
	for growThreshold(newCap, m.maxLoad) < n {
		newCap *= resizeFactor
	}

	if m.capMinus1+1 < newCap {
		m.resize(newCap)
	}
}

// Clear removes all key-value pairs from the map. The capacity is kept.
func (m *Map[K, V]) Clear() {
	for i := range m.tags {
		m.tags[i] = 0
	}
	var free Bucket[K, V]
	for i := range m.buckets {
		m.buckets[i] = free
	}
	m.length = 0
}

// Size returns the number of items in the map.
func (m *Map[K, V]) Size() int {
	return int(m.length)
}

// Empty reports whether the map holds no items.
func (m *Map[K, V]) Empty() bool {
	return m.length == 0
}

// Cap returns the number of slots of the table.
func (m *Map[K, V]) Cap() int {
	return int(m.capMinus1 + 1)
}

// Load return the current load of the hash map.
func (m *Map[K, V]) Load() float32 {
	return float32(m.length) / float32(m.capMinus1+1)
}

// MaxLoad forces resizing if the ratio is reached.
// Useful values are in range [0.5-0.9].
// Returns ErrOutOfRange if `lf` is not in the open range (0.0,1.0).
func (m *Map[K, V]) MaxLoad(lf float32) error {
	if lf <= 0.0 || lf >= 1.0 {
		return fmt.Errorf("%f: %w", lf, ErrOutOfRange)
	}
	m.maxLoad = lf
	m.growAt = growThreshold(m.capMinus1+1, lf)
	for m.length >= m.growAt {
		m.resize((m.capMinus1 + 1) * resizeFactor)
	}
	return nil
}

// Hasher returns the hash function of the map.
func (m *Map[K, V]) Hasher() HashFn[K] {
	return m.hasher
}

// Each calls 'fn' on every key-value pair in the hash map in no particular order.
// If 'fn' returns true, the iteration stops.
func (m *Map[K, V]) Each(fn func(key K, val V) bool) {
	for i := range m.buckets {
		if m.tags[i] != 0 {
			if stop := fn(m.buckets[i].key, m.buckets[i].value); stop {
				// stop iteration
				return
			}
		}
	}
}

// Copy returns a copy of this map.
func (m *Map[K, V]) Copy() *Map[K, V] {
	newM := &Map[K, V]{
		buckets:     m.bucketAlloc.Alloc(m.capMinus1 + 1),
		tags:        m.tagAlloc.Alloc(m.capMinus1 + 1 + tailMirror),
		hasher:      m.hasher,
		eq:          m.eq,
		bucketAlloc: m.bucketAlloc,
		tagAlloc:    m.tagAlloc,
		length:      m.length,
		capMinus1:   m.capMinus1,
		growAt:      m.growAt,
		maxLoad:     m.maxLoad,
	}
	copy(newM.buckets, m.buckets)
	copy(newM.tags, m.tags)
	return newM
}

// Swap exchanges the contents of both maps, including hash functions,
// allocators and configuration. No elements are moved or rehashed.
func (m *Map[K, V]) Swap(other *Map[K, V]) {
	*m, *other = *other, *m
}

// EqualFunc reports whether both maps hold the same keys with values
// equal under 'eq'. The element order is irrelevant. Both maps should
// agree on hash function and key equality.
func (m *Map[K, V]) EqualFunc(other *Map[K, V], eq func(lhs, rhs V) bool) bool {
	if m.length != other.length {
		return false
	}
	equal := true
	m.Each(func(key K, val V) bool {
		otherVal, found := other.Get(key)
		if !found || !eq(val, otherVal) {
			equal = false
			return true
		}
		return false
	})
	return equal
}

// Equal reports whether both maps hold the same key-value pairs. The
// element order is irrelevant.
func Equal[K comparable, V comparable](lhs, rhs *Map[K, V]) bool {
	return lhs.EqualFunc(rhs, func(a, b V) bool { return a == b })
}
