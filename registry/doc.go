// Package registry keeps a directory of every centrally-invalidated cache in
// the process and applies key-matching invalidation across all of them when a
// change notification arrives on the event bus.
//
// Matching is deliberately fuzzy: a stored key is invalidated when it equals,
// contains, or contains a percent-encoded variant of the changed key or path.
// Composite keys embed raw resource paths, so substring matching answers
// "does this stored key reference the changed path". Over-invalidation is
// accepted; under-invalidation would mean stale reads.
package registry
