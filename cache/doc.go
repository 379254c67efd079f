// Package cache provides request-level caching: deterministic key derivation,
// a pluggable byte store and a fail-open service on top of it.
//
// # Overview
//
//   - KeyCodec: builds keys of the form METHOD:path:actor:params:query[:body]
//   - Store: byte-level backend (Redis or in-process sturdyc)
//   - Service: typed read-through caching, pattern invalidation and
//     per-user namespaces
//
// # Basic Usage
//
//	svc, store, err := cache.NewCacheService(ctx, cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer store.(io.Closer).Close()
//
//	users, err := cache.GetOrSet(ctx, svc, "users:all", func(ctx context.Context) ([]User, error) {
//		return repo.FindAll(ctx)
//	}, 10*time.Minute)
//
// # Failure Semantics
//
// The cache never fails a request. Store errors and undecodable payloads are
// logged and reported as misses; failed writes and invalidations are logged
// and dropped. Only the fetch function passed to GetOrSet can return an error,
// and a failed fetch caches nothing.
//
// Writes and invalidations run on a context detached from the caller's
// cancellation and bounded by the operation timeout.
//
// # Patterns
//
// Invalidation patterns are either an exact key or a prefix followed by a
// single trailing "*". "user:42:*" clears every key in user 42's namespace.
//
// # Keys
//
// Key parts are concatenated, not hashed, so keys are readable in redis-cli.
// Maps are serialized with sorted keys, strings are quoted and absent parts
// render as "nil". The body only participates for POST, PUT and PATCH.
// Function values serialize by pointer and are stable within one process only.
package cache
