// Package limiter throttles public certificate verification lookups per client.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter counts failed verification lookups and places temporary blocks.
type Limiter interface {
	// Allow reports whether a lookup is currently allowed and optional retry-after.
	Allow(ctx context.Context, ipHash []byte) (bool, time.Duration, error)
	// Failure records a lookup of an unknown token; may place a temporary block.
	Failure(ctx context.Context, ipHash []byte) (bool, time.Duration, error)
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}
