package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Memory is a process-local Store backed by ttlcache. It is safe for
// concurrent use. Reads never extend an entry's TTL, and expired entries are
// dropped by PurgeExpired rather than a background goroutine.
type Memory struct {
	// writes share the lock; PurgeExpired takes it exclusively so its
	// count covers only expired entries.
	mu    sync.RWMutex
	items *ttlcache.Cache[string, []byte]
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items: ttlcache.New[string, []byte](
			ttlcache.WithDisableTouchOnHit[string, []byte](),
		),
	}
}

// Get returns a copy of the value stored under key, or ErrMiss.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	item := m.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, ErrMiss
	}
	return slices.Clone(item.Value()), nil
}

// Set stores a copy of value under key. A non-positive ttl never expires.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}

	m.mu.RLock()
	m.items.Set(key, slices.Clone(value), ttl)
	m.mu.RUnlock()
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.RLock()
	m.items.Delete(key)
	m.mu.RUnlock()
	return nil
}

// PurgeExpired removes every expired entry and returns how many were removed.
func (m *Memory) PurgeExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := m.items.Len()
	m.items.DeleteExpired()
	return before - m.items.Len(), nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	return m.items.Len()
}
