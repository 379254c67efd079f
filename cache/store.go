package cache

import (
	"context"
	"strings"
	"time"
)

// Wildcard is the single trailing wildcard accepted in invalidation patterns.
const Wildcard = "*"

// Store is the key/value backend contract the Service builds on.
// Implementations report backend failures as errors; the Service decides
// how to degrade.
type Store interface {
	// Get returns the stored payload and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set upserts key. A ttl <= 0 uses the store default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// KeysMatching resolves an exact key or a prefix with a trailing
	// wildcard. It returns an empty slice, never nil, when nothing matches.
	KeysMatching(ctx context.Context, pattern string) ([]string, error)
	// ResetAll clears every entry in the store's namespace.
	ResetAll(ctx context.Context) error
}

// SplitPattern returns the literal prefix of pattern and whether it ends in
// the trailing wildcard. A pattern without wildcard is an exact key.
func SplitPattern(pattern string) (prefix string, wildcard bool) {
	if strings.HasSuffix(pattern, Wildcard) {
		return strings.TrimSuffix(pattern, Wildcard), true
	}
	return pattern, false
}

// MatchPattern reports whether key is selected by pattern.
func MatchPattern(pattern, key string) bool {
	prefix, wildcard := SplitPattern(pattern)
	if wildcard {
		return strings.HasPrefix(key, prefix)
	}
	return key == prefix
}
