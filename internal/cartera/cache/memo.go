// Package cache provides the single-slot memo used for indices and view results.
package cache

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Memo holds at most one value together with the key it was computed for. A lookup
// with the same key returns the stored value; any other key recomputes and replaces
// it. Concurrent misses on one key share a single computation.
type Memo[T any] struct {
	mu    sync.RWMutex
	key   string
	val   T
	valid bool

	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// Get returns the value for key, calling build on a miss. hit reports whether the
// stored value was reused. Errors are returned but never cached.
func (m *Memo[T]) Get(key string, build func() (T, error)) (val T, hit bool, err error) {
	m.mu.RLock()
	if m.valid && m.key == key {
		val = m.val
		m.mu.RUnlock()
		m.hits.Add(1)
		return val, true, nil
	}
	m.mu.RUnlock()

	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		m.mu.RLock()
		if m.valid && m.key == key {
			stored := m.val
			m.mu.RUnlock()
			return stored, nil
		}
		m.mu.RUnlock()

		built, err := build()
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.key, m.val, m.valid = key, built, true
		m.mu.Unlock()
		return built, nil
	})
	m.misses.Add(1)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v.(T), false, nil
}

// Stats reports lookups served from the slot and lookups that recomputed.
func (m *Memo[T]) Stats() (hits, misses int64) {
	return m.hits.Load(), m.misses.Load()
}
