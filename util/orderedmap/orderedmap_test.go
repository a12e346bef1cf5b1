package orderedmap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sjalander/jlmgo/util/orderedmap"
)

func TestLoadStore(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[int, string]()
	_, ok := m.Load(1)
	require.False(t, ok)

	m.Store(1, "a")
	v, ok := m.Load(1)
	require.True(t, ok)
	require.Equal(t, "a", v)

	m.Store(1, "b") // overwrite, no new insertion-order entry
	v, ok = m.Load(1)
	require.True(t, ok)
	require.Equal(t, "b", v)
	require.Equal(t, 1, m.Len())
}

func TestKeysPreserveInsertionOrder(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[string, int]()
	order := []string{"z", "a", "m", "b"}
	for i, k := range order {
		m.Store(k, i)
	}
	require.Equal(t, order, m.Keys())
	require.Equal(t, len(order), m.Len())

	// Re-storing an existing key must not shuffle the recorded order.
	m.Store("a", 100)
	require.Equal(t, order, m.Keys())
}

func TestRangeVisitsInOrderAndCanStopEarly(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[int, int]()
	for i := 0; i < 10; i++ {
		m.Store(i, i*i)
	}

	var visited []int
	m.Range(func(k, v int) bool {
		visited = append(visited, k)
		return k < 4
	})
	require.Equal(t, []int{0, 1, 2, 3, 4}, visited)

	var all []int
	m.Range(func(k, v int) bool {
		all = append(all, k)
		return true
	})
	require.Len(t, all, 10)
	for i, k := range all {
		require.Equal(t, i, k)
	}
}

func TestEmptyMap(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[string, int]()
	require.Equal(t, 0, m.Len())
	require.Empty(t, m.Keys())
	m.Range(func(k string, v int) bool {
		t.Fatalf("Range should not call f on an empty map")
		return true
	})
}
