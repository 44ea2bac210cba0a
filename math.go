package dict

import "golang.org/x/exp/constraints"

// NextPowerOf2 rounds i up to the next power of two. Powers of two map
// to themselves, zero maps to zero.
// see: https://stackoverflow.com/questions/466204/rounding-up-to-next-power-of-2
func NextPowerOf2(i uint64) uint64 {
	i--
	i |= i >> 1
	i |= i >> 2
	i |= i >> 4
	i |= i >> 8
	i |= i >> 16
	i |= i >> 32
	i++
	return i
}

// Max returns the max of a and b.
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}
