// Package cache provides the read-through cache used in front of license
// lookups. The cache is a pure performance layer: implementations swallow
// their own failures, and every store write path invalidates synchronously.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// keyPrefix namespaces all cache keys owned by the license server.
const keyPrefix = "smliser:"

// Cache is the minimal surface the stores need. Implementations must be
// safe for concurrent use and must never fail a caller: a broken cache
// behaves like an empty one.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes the given keys.
	Delete(ctx context.Context, keys ...string)
	// Clear removes every key owned by this cache.
	Clear(ctx context.Context)
}

// Fingerprint builds a deterministic cache key from a method name and its
// arguments.
func Fingerprint(method string, args ...string) string {
	sum := sha256.Sum256([]byte(method + "|" + strings.Join(args, "|")))
	return keyPrefix + method + ":" + hex.EncodeToString(sum[:16])
}
