// Package event defines the change-notification vocabulary for the cache
// coordination layer and a process-wide publish/subscribe bus.
//
// The vocabulary is a closed set: a Type names what kind of notification is
// being delivered, an Operation names the mutation variant, and a Payload
// carries the changed key plus metadata. Payloads are transient; the bus never
// retains one beyond the duration of a dispatch.
//
// Dispatch is synchronous and in subscription order. A panicking subscriber is
// recovered and logged without interrupting delivery to later subscribers.
package event
