package sync

import "sync"

// TypedSyncMap is a sync.Map restricted to a single key and value
// type. The zero value is empty and ready for use.
type TypedSyncMap[K comparable, V any] struct {
	m sync.Map
}

func (m *TypedSyncMap[K, V]) Store(key K, value V) { m.m.Store(key, value) }

func (m *TypedSyncMap[K, V]) Delete(key K) { m.m.Delete(key) }

func (m *TypedSyncMap[K, V]) Load(key K) (V, bool) {
	v, ok := m.m.Load(key)
	return cast[V](v, ok)
}

func (m *TypedSyncMap[K, V]) LoadAndDelete(key K) (V, bool) {
	v, loaded := m.m.LoadAndDelete(key)
	return cast[V](v, loaded)
}

// LoadOrStore returns the existing value for the key if present, otherwise
// it stores and returns the value given. The bool is true if the value was
// loaded rather than stored.
func (m *TypedSyncMap[K, V]) LoadOrStore(key K, value V) (V, bool) {
	v, loaded := m.m.LoadOrStore(key, value)
	actual, _ := cast[V](v, true)
	return actual, loaded
}

// Range calls fn sequentially for each key and value present in the map. If fn
// returns false, range stops the iteration.
func (m *TypedSyncMap[K, V]) Range(fn func(key K, value V) bool) {
	m.m.Range(func(k, v any) bool {
		return fn(k.(K), v.(V))
	})
}

// Values collects every value currently held. No ordering is guaranteed.
func (m *TypedSyncMap[K, V]) Values() []V {
	values := make([]V, 0)
	m.Range(func(_ K, v V) bool {
		values = append(values, v)
		return true
	})

	return values
}

// Snapshot copies the map in to a plain map. Writes made while the snapshot
// is being taken may or may not be reflected.
func (m *TypedSyncMap[K, V]) Snapshot() map[K]V {
	out := make(map[K]V)
	m.Range(func(k K, v V) bool {
		out[k] = v
		return true
	})

	return out
}

func cast[V any](v any, ok bool) (V, bool) {
	if !ok {
		return *new(V), false
	}

	vv, ok := v.(V)
	return vv, ok
}
