package types

import (
	"iter"
	"maps"
)

// DefaultMap is a map that materializes a value from a factory the first time
// a missing key is read.
//
//	m := NewDefaultMap[string](func() *Counter { return new(Counter) })
//	m.Get("chain-1").Inc()
//
// DefaultMap is not safe for concurrent use.
type DefaultMap[K comparable, V any] struct {
	data        map[K]V
	defaultFunc func() V
}

// NewDefaultMap creates an empty DefaultMap whose missing values come from defaultFunc.
func NewDefaultMap[K comparable, V any](defaultFunc func() V) DefaultMap[K, V] {
	return DefaultMap[K, V]{
		data:        make(map[K]V),
		defaultFunc: defaultFunc,
	}
}

// Get returns the value of key, storing a fresh default value first when absent.
func (d *DefaultMap[K, V]) Get(key K) V {
	val, ok := d.data[key]
	if ok {
		return val
	}

	val = d.defaultFunc()
	d.data[key] = val
	return val
}

// Lookup returns the value of key without creating it.
func (d *DefaultMap[K, V]) Lookup(key K) (V, bool) {
	val, ok := d.data[key]
	return val, ok
}

// Set assigns val to key.
func (d *DefaultMap[K, V]) Set(key K, val V) {
	d.data[key] = val
}

// Len returns the number of stored keys.
func (d *DefaultMap[K, V]) Len() int {
	return len(d.data)
}

// All iterates over every stored key/value pair in no particular order.
func (d *DefaultMap[K, V]) All() iter.Seq2[K, V] {
	return maps.All(d.data)
}
