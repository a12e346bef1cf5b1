// Package orderedmap implements a generic map that iterates in insertion
// order, used wherever a pass needs map-speed lookup but must still produce
// deterministic output (the re-encoder's per-region allocator-state table,
// in particular - iterating it in a random order would make digraph dumps
// and encoded-graph output nondeterministic between runs).
package orderedmap

// Map is an insertion-ordered map. It is an internal helper, not a
// general-purpose container: it lacks deletion-stable iteration guarantees
// beyond what Range documents.
type Map[K comparable, V any] struct {
	order []K
	inner map[K]V
}

// New creates an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{inner: make(map[K]V)}
}

// Load returns the value stored for key and whether it was present.
func (m *Map[K, V]) Load(key K) (V, bool) {
	v, ok := m.inner[key]
	return v, ok
}

// Store sets key's value, appending it to insertion order only if it is new.
func (m *Map[K, V]) Store(key K, value V) {
	if _, ok := m.inner[key]; !ok {
		m.order = append(m.order, key)
	}
	m.inner[key] = value
}

// Len returns the number of stored entries.
func (m *Map[K, V]) Len() int { return len(m.order) }

// Keys returns the stored keys in insertion order.
func (m *Map[K, V]) Keys() []K {
	return append([]K(nil), m.order...)
}

// Range calls f for every entry in insertion order, stopping early if f
// returns false.
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	for _, k := range m.order {
		if !f(k, m.inner[k]) {
			return
		}
	}
}
