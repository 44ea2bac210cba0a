package dict

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/dolthub/maphash"
)

// HashFn is a function that returns the hash of 't'.
type HashFn[T any] func(t T) uint64

// Mix implements MurmurHash3's 64-bit finalizer. It spreads the entropy
// of a weak hash value over all 64 bits, which matters on a power of two
// table where only the low bits select the home bucket.
func Mix(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// WithMixer wraps 'hasher' with `Mix`. Use it to repair hash functions
// with a weak distribution, like the identity hash on integers.
func WithMixer[T any](hasher HashFn[T]) HashFn[T] {
	return func(t T) uint64 {
		return Mix(hasher(t))
	}
}

// GetHasher returns a hasher for the golang default types. All returned
// hashers are well mixed, so no `WithMixer` wrapper is needed on top.
// Other comparable key types fall back to the hash function of the Go
// runtime.
func GetHasher[Key comparable]() HashFn[Key] {
	var key Key
	kind := reflect.ValueOf(&key).Elem().Type().Kind()

	switch kind {
	case reflect.Int, reflect.Uint, reflect.Uintptr:
		switch unsafe.Sizeof(key) {
		case 2:
			return *(*func(Key) uint64)(unsafe.Pointer(&hashWord))
		case 4:
			return *(*func(Key) uint64)(unsafe.Pointer(&hashDword))
		case 8:
			return *(*func(Key) uint64)(unsafe.Pointer(&hashQword))

		default:
			panic(fmt.Sprintf("unsupported integer byte size %d", unsafe.Sizeof(key)))
		}

	case reflect.Int8, reflect.Uint8:
		return *(*func(Key) uint64)(unsafe.Pointer(&hashByte))
	case reflect.Int16, reflect.Uint16:
		return *(*func(Key) uint64)(unsafe.Pointer(&hashWord))
	case reflect.Int32, reflect.Uint32:
		return *(*func(Key) uint64)(unsafe.Pointer(&hashDword))
	case reflect.Int64, reflect.Uint64:
		return *(*func(Key) uint64)(unsafe.Pointer(&hashQword))
	case reflect.Float32:
		return *(*func(Key) uint64)(unsafe.Pointer(&hashFloat32))
	case reflect.Float64:
		return *(*func(Key) uint64)(unsafe.Pointer(&hashFloat64))
	case reflect.String:
		return *(*func(Key) uint64)(unsafe.Pointer(&fnv1aModified))

	default:
		hasher := maphash.NewHasher[Key]()
		return hasher.Hash
	}
}

var hashByte = func(in uint8) uint64 {
	key := uint32(in)
	key *= 0xcc9e2d51
	key = (key << 15) | (key >> 17)
	key *= 0x1b873593
	return uint64(key)
}

var hashWord = func(in uint16) uint64 {
	key := uint32(in)
	key *= 0xcc9e2d51
	key = (key << 15) | (key >> 17)
	key *= 0x1b873593
	return uint64(key)
}

var hashDword = func(key uint32) uint64 {
	key *= 0xcc9e2d51
	key = (key << 15) | (key >> 17)
	key *= 0x1b873593
	return uint64(key)
}

var hashFloat32 = func(in float32) uint64 {
	p := unsafe.Pointer(&in)
	key := *(*uint32)(p)

	key *= 0xcc9e2d51
	key = (key << 15) | (key >> 17)
	key *= 0x1b873593
	return uint64(key)
}

var hashFloat64 = func(in float64) uint64 {
	p := unsafe.Pointer(&in)
	return Mix(*(*uint64)(p))
}

var hashQword = func(key uint64) uint64 {
	return Mix(key)
}

// fnv1aModified implements a simpler and faster variant of the fnv1a algorithm, that seems good enough for string hashing.
var fnv1aModified = func(b []byte) uint64 {
	const prime64 = uint64(1099511628211)
	h := uint64(14695981039346656037)

	for len(b) >= 8 {
		x := binary.BigEndian.Uint32(b)
		b = b[4:]
		y := binary.BigEndian.Uint32(b)
		b = b[4:]
		z := (uint64(x) << 32) | uint64(y)
		h = (h ^ z) * prime64
	}

	if len(b) >= 4 {
		x := binary.BigEndian.Uint16(b)
		b = b[2:]
		y := binary.BigEndian.Uint16(b)
		b = b[2:]
		z := (uint64(x) << 16) | uint64(y)
		h = (h ^ z) * prime64
	}

	if len(b) >= 2 {
		h = (h ^ uint64(b[0]^b[1])) * prime64
		b = b[2:]
	}

	if len(b) > 0 {
		h = (h ^ uint64(b[0])) * prime64
	}

	return h
}
