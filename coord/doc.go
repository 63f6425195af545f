// Package coord wires the cache coordination pieces into one explicit
// composition root.
//
// A Coordinator owns the event bus, the cache registry and the subscription
// manager, constructed once at process start and threaded through the
// application instead of reached via package-level singletons. Write-side
// collaborators call NotifyChange after a successful mutation; read-side
// collaborators compose a BoundedCache with a Coalescer via GetThrough.
// Reset exists for test harnesses.
package coord
