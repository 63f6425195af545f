// Package subscribe is a priority-ordered publish/subscribe layer over the
// event vocabulary.
//
// Subscribers declare a priority and optional structural filters; dispatch
// invokes matching callbacks sequentially in descending priority order with
// stable ties, so a cache-clearing subscriber can reliably run before a
// metrics subscriber that reads cache size. Callback failures are isolated
// per subscriber and recorded in per-subscription statistics.
//
// A subscription moves active -> inactive on unsubscribe and is physically
// removed only by Cleanup; there is no way back to active.
package subscribe
