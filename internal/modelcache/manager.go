// Package modelcache keeps loaded model handles in memory so a worker
// pool does not pay the multi-second load cost on every job. The manager
// is an explicit, injectable object owned by the pool rather than a
// process global, so tests can substitute a fake loader.
package modelcache

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Handle is an opaque loaded-model reference returned by the loader.
type Handle any

// Loader loads a model by name. Called at most once per cache residency.
type Loader func(model string) (Handle, error)

// Evictor releases resources when a handle leaves the cache.
type Evictor func(model string, h Handle)

// Manager is an LRU-evicting cache of loaded model handles.
type Manager struct {
	mu     sync.Mutex
	cache  *lru.Cache[string, Handle]
	loader Loader
}

// New creates a manager holding at most size models. onEvict may be nil.
func New(size int, loader Loader, onEvict Evictor) (*Manager, error) {
	if size < 1 {
		return nil, fmt.Errorf("model cache size must be at least 1, got %d", size)
	}
	var cb func(string, Handle)
	if onEvict != nil {
		cb = func(k string, v Handle) { onEvict(k, v) }
	}
	cache, err := lru.NewWithEvict[string, Handle](size, cb)
	if err != nil {
		return nil, err
	}
	return &Manager{cache: cache, loader: loader}, nil
}

// Acquire returns the cached handle for model, loading it on first use.
// Load failures are not cached; the next Acquire retries.
func (m *Manager) Acquire(model string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.cache.Get(model); ok {
		return h, nil
	}
	h, err := m.loader(model)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", model, err)
	}
	m.cache.Add(model, h)
	return h, nil
}

// Evict removes a model from the cache, firing the evictor.
func (m *Manager) Evict(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Remove(model)
}

// Len reports how many models are currently resident.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}
