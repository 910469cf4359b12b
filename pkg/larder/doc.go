// Package larder provides resilient data access for cache-heavy services:
// named caches over pluggable backends (in-process, sharded, Redis, or a
// two-tier hybrid), a health-checked database connection pool, and the
// resilience primitives that guard both (retry with exponential backoff,
// circuit breaker, sliding-window rate limiting, bulkhead).
//
// The entry point is a Manager, a registry of named caches sharing one
// background maintenance loop:
//
//	mgr, err := larder.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer mgr.Close()
//
//	users, err := mgr.GetOrCreateCache("users", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = users.Set(ctx, "user:42", profile, larder.WithTTL(10*time.Minute))
//
//	var got Profile
//	err = users.Get(ctx, "user:42", &got)
//	if larder.IsCacheMiss(err) {
//		// load from the source of truth
//	}
//
// Cache misses are a sentinel error, not a failure: a degraded Redis
// backend reports misses rather than surfacing transport errors on the
// read path, while writes always propagate their errors.
//
// For read-through caching, GetOrLoad collapses concurrent loads of the
// same key into one:
//
//	err = users.GetOrLoad(ctx, "user:42", &got, func(ctx context.Context) (any, error) {
//		return fetchProfile(ctx, 42)
//	})
//
// Configuration is a JSON file plus LARDER_* environment overrides; see
// the config package for the full surface.
package larder
