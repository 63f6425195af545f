// Package coalesce merges concurrent requests for the same key into one
// underlying production, sharing its outcome.
//
// A Coalescer guarantees at most one in-flight producer per key: callers that
// arrive while a production is pending await the same result, including a
// failure. An age-based sweep reclaims pending entries whose producer never
// settles, so a stuck production cannot permanently block retries. The sweep
// does not cancel the stuck producer; a result that settles after being
// reclaimed is discarded.
package coalesce
