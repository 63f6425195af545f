// Package observe provides observability primitives for the cache
// coordination layer.
//
// It is a pure instrumentation library: no cache logic, no transport, no I/O
// beyond exporter setup. Consumers wire the observer into the coordinator or
// use the Logger, Metrics and Tracer pieces directly.
package observe
