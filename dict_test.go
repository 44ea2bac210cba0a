package dict_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EinfachAndy/dict"
)

func TestInsertLookupRoundTrip(t *testing.T) {
	m := dict.New[int, int]()

	assert.True(t, m.Put(1, 10))
	assert.True(t, m.Put(2, 20))
	assert.True(t, m.Put(3, 30))

	assert.Equal(t, 3, m.Size())

	v, found := m.Get(2)
	assert.True(t, found)
	assert.Equal(t, 20, v)

	_, found = m.Get(4)
	assert.False(t, found)
	assert.Nil(t, m.Lookup(4))
}

// TestCollisionCluster drives every key through one probe chain. All
// per-slot filtering is defeated, the probe degrades to a linear scan
// over the cluster and must stay correct.
func TestCollisionCluster(t *testing.T) {
	m := dict.NewWithHasher[int, int](func(int) uint64 { return 1 })

	for i := 1; i <= 32; i++ {
		require.True(t, m.Put(i, i))
	}
	require.Equal(t, 32, m.Size())
	for i := 1; i <= 32; i++ {
		v, found := m.Get(i)
		require.True(t, found, "key %d missed", i)
		require.Equal(t, i, v)
	}

	require.True(t, m.Remove(16))
	require.Equal(t, 31, m.Size())
	_, found := m.Get(16)
	require.False(t, found)
	v, found := m.Get(17)
	require.True(t, found)
	require.Equal(t, 17, v)

	for i := 1; i <= 32; i++ {
		if i == 16 {
			continue
		}
		require.True(t, m.Remove(i), "key %d not removable", i)
	}
	require.Equal(t, 0, m.Size())
}

// TestBackwardShift erases the first of three contiguous identity-hash
// keys. The following keys sit at their home slots, so the backward shift
// stops at once; the remaining elements must stay reachable.
func TestBackwardShift(t *testing.T) {
	m := dict.NewWithHasher[uint64, int](func(k uint64) uint64 { return k })

	m.Put(1, 1)
	m.Put(2, 2)
	m.Put(3, 3)

	require.True(t, m.Remove(1))

	got := make(map[uint64]int)
	m.Each(func(k uint64, v int) bool {
		got[k] = v
		return false
	})
	assert.Equal(t, map[uint64]int{2: 2, 3: 3}, got)

	v, found := m.Get(2)
	assert.True(t, found)
	assert.Equal(t, 2, v)
	v, found = m.Get(3)
	assert.True(t, found)
	assert.Equal(t, 3, v)
}

func TestGrowthPreservesContent(t *testing.T) {
	m := dict.New[int, int]()

	for i := 0; i < 1000; i++ {
		require.True(t, m.Put(i, i))
	}
	require.Equal(t, 1000, m.Size())

	sum := 0
	m.Each(func(_, v int) bool {
		sum += v
		return false
	})
	assert.Equal(t, 999*1000/2, sum)
}

func TestStringKeys(t *testing.T) {
	m := dict.New[string, int]()
	keys := []string{"1111111", "2222222", "3333333", "4444444", "5555555", "6666666", "7777777"}

	for i, k := range keys {
		m.Put(k, i+1)
	}
	for i, k := range keys {
		v, err := m.At(k)
		require.NoError(t, err)
		require.Equal(t, i+1, v)
	}

	require.True(t, m.Remove("2222222"))
	require.True(t, m.Remove("4444444"))
	require.True(t, m.Remove("6666666"))
	require.Equal(t, 4, m.Size())

	m.Put("abc", 8)
	m.Put("def", 9)
	require.Equal(t, 6, m.Size())

	for _, k := range []string{"1111111", "3333333", "5555555", "7777777", "abc", "def"} {
		_, err := m.At(k)
		require.NoError(t, err, "key %s missed", k)
	}
	for _, k := range []string{"2222222", "4444444", "6666666"} {
		_, err := m.At(k)
		require.ErrorIs(t, err, dict.ErrNotFound)
	}
}

func TestAt(t *testing.T) {
	m := dict.New[int, string]()
	m.Put(1, "one")

	v, err := m.At(1)
	assert.NoError(t, err)
	assert.Equal(t, "one", v)

	_, err = m.At(2)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, dict.ErrNotFound))
}

func TestInsertDefaultConstructs(t *testing.T) {
	m := dict.New[string, int]()

	val, isNew := m.Insert("counter")
	require.True(t, isNew)
	require.Equal(t, 0, *val)
	*val = 41

	val, isNew = m.Insert("counter")
	require.False(t, isNew)
	*val++

	v, _ := m.Get("counter")
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, m.Size())
}

func TestTryInsert(t *testing.T) {
	m := dict.New[int, string]()

	val, isNew := m.TryInsert(1, "first")
	require.True(t, isNew)
	require.Equal(t, "first", *val)

	val, isNew = m.TryInsert(1, "second")
	assert.False(t, isNew)
	assert.Equal(t, "first", *val, "present key must keep its value")

	v, _ := m.Get(1)
	assert.Equal(t, "first", v)
}

func TestPutOverwrites(t *testing.T) {
	m := dict.New[int, string]()

	assert.True(t, m.Put(1, "first"))
	assert.False(t, m.Put(1, "second"))

	v, _ := m.Get(1)
	assert.Equal(t, "second", v)
	assert.Equal(t, 1, m.Size())
}

func TestCount(t *testing.T) {
	m := dict.New[int, int]()
	m.Put(1, 1)

	assert.Equal(t, 1, m.Count(1))
	assert.Equal(t, 0, m.Count(2))
}

func TestRemoveAbsent(t *testing.T) {
	m := dict.New[int, int]()
	m.Put(1, 1)

	assert.False(t, m.Remove(2))
	assert.True(t, m.Remove(1))
	assert.False(t, m.Remove(1))
	assert.True(t, m.Empty())
}

func TestRemoveThenReinsert(t *testing.T) {
	m := dict.New[int, int]()

	for i := 0; i < 100; i++ {
		m.Put(i, i)
	}
	for i := 0; i < 100; i += 2 {
		require.True(t, m.Remove(i))
		_, found := m.Get(i)
		require.False(t, found)
	}
	for i := 0; i < 100; i += 2 {
		require.True(t, m.Put(i, -i))
	}
	for i := 0; i < 100; i++ {
		v, found := m.Get(i)
		require.True(t, found)
		if i%2 == 0 {
			require.Equal(t, -i, v)
		} else {
			require.Equal(t, i, v)
		}
	}
}

func TestClearKeepsCapacity(t *testing.T) {
	m := dict.New[int, int]()
	for i := 0; i < 1000; i++ {
		m.Put(i, i)
	}
	capacity := m.Cap()

	m.Clear()

	assert.Equal(t, 0, m.Size())
	assert.True(t, m.Empty())
	assert.Equal(t, capacity, m.Cap())
	_, found := m.Get(1)
	assert.False(t, found)

	m.Put(1, 1)
	v, found := m.Get(1)
	assert.True(t, found)
	assert.Equal(t, 1, v)
}

func TestReserve(t *testing.T) {
	m := dict.New[int, int]()

	m.Reserve(1000)
	capacity := m.Cap()
	require.GreaterOrEqual(t, capacity, 1000)

	for i := 0; i < 1000; i++ {
		m.Put(i, i)
	}
	assert.Equal(t, capacity, m.Cap(), "reserved table must not grow")

	// a smaller reservation has no effect
	m.Reserve(10)
	assert.Equal(t, capacity, m.Cap())
}

func TestMaxLoad(t *testing.T) {
	m := dict.New[int, int]()

	assert.ErrorIs(t, m.MaxLoad(0.0), dict.ErrOutOfRange)
	assert.ErrorIs(t, m.MaxLoad(1.0), dict.ErrOutOfRange)
	assert.ErrorIs(t, m.MaxLoad(-0.5), dict.ErrOutOfRange)
	assert.ErrorIs(t, m.MaxLoad(1.5), dict.ErrOutOfRange)

	require.NoError(t, m.MaxLoad(0.5))
	for i := 0; i < 100; i++ {
		m.Put(i, i)
	}
	assert.LessOrEqual(t, m.Load(), float32(0.5))

	// lowering the threshold below the current load rehashes at once
	m2 := dict.New[int, int]()
	for i := 0; i < 100; i++ {
		m2.Put(i, i)
	}
	require.NoError(t, m2.MaxLoad(0.3))
	assert.LessOrEqual(t, m2.Load(), float32(0.3))
	for i := 0; i < 100; i++ {
		v, found := m2.Get(i)
		require.True(t, found)
		require.Equal(t, i, v)
	}
}

func TestPermutationsAgree(t *testing.T) {
	items := make([]dict.Item[int, int], 100)
	for i := range items {
		items[i] = dict.Item[int, int]{Key: i, Value: i * 10}
	}

	ref := dict.NewFromItems(items...)
	for round := 0; round < 5; round++ {
		rand.Shuffle(len(items), func(i, j int) {
			items[i], items[j] = items[j], items[i]
		})
		m := dict.NewFromItems(items...)
		assert.True(t, dict.Equal(ref, m))
	}
}

func TestEqual(t *testing.T) {
	a := dict.New[int, int]()
	b := dict.New[int, int]()
	c := dict.New[int, int]()

	for i := 0; i < 100; i++ {
		a.Put(i, i)
		c.Put(i, i)
	}
	for i := 99; i >= 0; i-- {
		b.Put(i, i)
	}

	// reflexive, symmetric, transitive
	assert.True(t, dict.Equal(a, a))
	assert.True(t, dict.Equal(a, b))
	assert.True(t, dict.Equal(b, a))
	assert.True(t, dict.Equal(b, c))
	assert.True(t, dict.Equal(a, c))

	b.Put(50, -1)
	assert.False(t, dict.Equal(a, b))

	b.Put(50, 50)
	b.Put(100, 100)
	assert.False(t, dict.Equal(a, b), "different sizes are never equal")
}

func TestEqualFunc(t *testing.T) {
	a := dict.New[int, []int]()
	b := dict.New[int, []int]()
	a.Put(1, []int{1, 2})
	b.Put(1, []int{1, 2})

	eq := func(lhs, rhs []int) bool {
		if len(lhs) != len(rhs) {
			return false
		}
		for i := range lhs {
			if lhs[i] != rhs[i] {
				return false
			}
		}
		return true
	}
	assert.True(t, a.EqualFunc(b, eq))

	b.Put(1, []int{1, 3})
	assert.False(t, a.EqualFunc(b, eq))
}

func TestSwap(t *testing.T) {
	a := dict.New[int, int]()
	b := dict.New[int, int]()
	a.Put(1, 1)
	b.Put(2, 2)
	b.Put(3, 3)

	a.Swap(b)

	assert.Equal(t, 2, a.Size())
	assert.Equal(t, 1, b.Size())
	_, found := a.Get(2)
	assert.True(t, found)
	_, found = b.Get(1)
	assert.True(t, found)
}

func TestNewFromItems(t *testing.T) {
	m := dict.NewFromItems(
		dict.Item[string, int]{Key: "a", Value: 1},
		dict.Item[string, int]{Key: "b", Value: 2},
		dict.Item[string, int]{Key: "a", Value: 3},
	)

	assert.Equal(t, 2, m.Size())
	v, _ := m.Get("a")
	assert.Equal(t, 1, v, "later duplicates do not overwrite")
}

func TestHasher(t *testing.T) {
	hasher := func(k int) uint64 { return uint64(k) }
	m := dict.NewWithHasher[int, int](hasher)

	got := m.Hasher()
	assert.Equal(t, uint64(42), got(42))
}

func TestEmptyMap(t *testing.T) {
	m := dict.New[int, int]()

	assert.True(t, m.Empty())
	assert.Equal(t, 0, m.Size())
	assert.False(t, m.Remove(1))
	assert.Equal(t, 0, m.Count(1))
	m.Clear()

	count := 0
	m.Each(func(int, int) bool {
		count++
		return false
	})
	assert.Equal(t, 0, count)
}
