// Package health exposes the coordination layer's statistics as health
// checks.
//
// A Checker reports Healthy, Degraded or Unhealthy for one component. The
// provided checks watch cache hit rates, coalescer pending backlogs and
// subscription bookkeeping growth. Use Aggregator to combine checks and the
// HTTP handlers to serve liveness/readiness probes:
//
//	agg := health.NewAggregator()
//	agg.Register("caches", health.NewCacheCheck(coordinator.Registry(), health.CacheCheckConfig{}))
//	http.Handle("/healthz", health.LivenessHandler())
//	http.Handle("/readyz", health.ReadinessHandler(agg))
//
// The coordination core itself performs no network I/O; this package is the
// diagnostic collaborator surface layered on top of it.
package health
