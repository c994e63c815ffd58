// Package cache defines the bounded, time-expiring byte cache that shields
// the remote asset API from repeated fetches. It is a latency shield, not a
// source of truth: content is lost on restart (memory engines) and that is
// intentional.
//
// Implementations must be byte-for-byte transparent: Get must return exactly
// the same []byte previously passed to Set for a key. The canonical contract
// (capacity-bounded LRU, fixed TTL from insertion, Has does not refresh
// recency) is enforced by the memory implementation; engine-backed adapters
// (Ristretto, BigCache, Redis) honor it best-effort per their engines.
package cache

import (
	"context"
	"time"
)

const (
	// DefaultCapacity bounds entry count when a config leaves it zero.
	DefaultCapacity = 500
	// DefaultTTL expires entries when a config leaves it zero.
	DefaultTTL = 5 * time.Minute
)

// Cache is a capacity-bounded byte store with a fixed per-cache TTL.
// Must be safe for concurrent use.
type Cache interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// An expired entry behaves as a miss. A hit refreshes recency where the
	// engine tracks it. IO/remote errors return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key with the cache's TTL. May be rejected
	// silently by engines under pressure.
	Set(ctx context.Context, key string, value []byte) error

	// Has reports whether key is present and unexpired without refreshing
	// its recency.
	Has(ctx context.Context, key string) (bool, error)

	// Delete removes key, reporting whether it was present.
	Delete(ctx context.Context, key string) (bool, error)

	// Clear removes every entry owned by this cache.
	Clear(ctx context.Context) error

	// Len returns the current entry count, or -1 when the engine does not
	// expose one (Ristretto, Redis).
	Len() int

	// Close releases resources.
	Close(ctx context.Context) error
}
