// Package cache stores rendered check reports so that the check service
// can answer repeated requests without re-parsing them.
//
// Three backends implement [Cache]:
//
//   - [NullCache] stores nothing (caching disabled)
//   - [FileCache] stores entries as files under a directory, for a single
//     server instance
//   - [RedisCache] stores entries in Redis, shared between instances
//
// Keys come from a [Keyer]. [ScopedKeyer] prefixes every key so several
// deployments can share one Redis database.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiry. Implementations are safe for
// concurrent use.
type Cache interface {
	// Get returns the stored value and whether it was found. Expired
	// entries are misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any held resources.
	Close() error
}
