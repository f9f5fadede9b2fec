// Package cache defines the shared key/value store with TTL used for cached
// Buy Box results and admin overrides, plus its in-process implementation.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrMiss is returned by Get when the key is absent or expired.
	ErrMiss = errors.New("cache miss")

	// ErrUnavailable is returned when the backing store is known to be down.
	ErrUnavailable = errors.New("cache store unavailable")
)

// Store is a namespaced key/value store with per-entry TTL.
// A ttl of zero stores the value without expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Purger removes expired entries from a store.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Key joins a namespace prefix and key parts with ':'.
// Empty parts are skipped so an empty prefix does not produce a leading ':'.
func Key(prefix string, parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if prefix != "" {
		all = append(all, prefix)
	}
	for _, p := range parts {
		if p != "" {
			all = append(all, p)
		}
	}
	return strings.Join(all, ":")
}
