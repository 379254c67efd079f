// Package interceptor wraps operation handlers with response caching and
// post-write invalidation.
//
// Cached runs the read side: derive the key, serve a hit without calling the
// handler, otherwise call the handler and store its result. Invalidating runs
// the write side: call the handler and, only when it succeeds, invalidate the
// configured pattern or reset the whole cache when none is configured.
//
// Handler errors pass through both wrappers as the same value.
//
//	p := interceptor.NewPipeline(svc, interceptor.WithActor(auth.Actor))
//	list := interceptor.Cached(p, listUsers, interceptor.WithKey("users:all"))
//	update := interceptor.Invalidating(p, updateUser, interceptor.WithPattern("GET:/users*"))
package interceptor
