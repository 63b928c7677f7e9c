// Package cache provides the byte-oriented key/value stores sessions are
// persisted in.
package cache

import (
	"context"
	"time"
)

// KeyPrefix namespaces every key written by claimcheck
const KeyPrefix = "claimcheck:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// SessionKey generates the cache key of a session
func SessionKey(id string) string {
	return KeyPrefix + "session:" + id
}
