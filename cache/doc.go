// Package cache provides a bounded, TTL-aware in-memory cache.
//
// BoundedCache holds a fixed number of entries and evicts the least recently
// used one when the bound is exceeded. Entries may carry a per-entry TTL that
// overrides the cache default; expiry is detected lazily at access time. The
// package also provides deterministic composite key derivation so that
// centrally invalidated caches key on a recognizable resource path.
package cache
