package threadsafe

import "sync"

// Map provides a simple locked map[K]V in order to make it thread safe
type Map[K comparable, V any] struct {
	mu     sync.RWMutex
	values map[K]V
}

// NewMap creates a new thread safe map
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		values: make(map[K]V),
	}
}

// Len returns the amount of stored K-V-pairs
func (safeMap *Map[K, V]) Len() int {
	safeMap.mu.RLock()
	defer safeMap.mu.RUnlock()
	return len(safeMap.values)
}

// Lookup looks up a specific key and returns the corresponding value and a boolean indicating if it was found
func (safeMap *Map[K, V]) Lookup(key K) (V, bool) {
	safeMap.mu.RLock()
	defer safeMap.mu.RUnlock()
	val, ok := safeMap.values[key]
	return val, ok
}

// Get looks up a specific key and returns the corresponding value.
// This value will be the zero value for non-existing keys. Use Lookup if this information is important.
func (safeMap *Map[K, V]) Get(key K) V {
	val, _ := safeMap.Lookup(key)
	return val
}

// Set sets the value of a specific key
func (safeMap *Map[K, V]) Set(key K, val V) {
	safeMap.mu.Lock()
	defer safeMap.mu.Unlock()
	safeMap.values[key] = val
}

// Delete removes the value of a specific key
func (safeMap *Map[K, V]) Delete(key K) {
	safeMap.mu.Lock()
	defer safeMap.mu.Unlock()
	delete(safeMap.values, key)
}

// Do runs the given function on the underlying map while holding the write lock.
// It exists for manipulations that have to be atomic across multiple accesses,
// like a read-increment-write cycle.
func (safeMap *Map[K, V]) Do(action func(values map[K]V)) {
	safeMap.mu.Lock()
	defer safeMap.mu.Unlock()
	action(safeMap.values)
}

// Clear re-creates the underlying map
func (safeMap *Map[K, V]) Clear() {
	safeMap.mu.Lock()
	defer safeMap.mu.Unlock()
	safeMap.values = make(map[K]V)
}
