package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/cachekit/cache"
	"github.com/jonwraymond/cachekit/coalesce"
	"github.com/jonwraymond/cachekit/subscribe"
)

// CacheStatsSource reports per-cache counters by name. *registry.Registry
// satisfies it.
type CacheStatsSource interface {
	Stats() map[string]cache.Stats
}

// CacheCheckConfig configures the cache efficacy check.
type CacheCheckConfig struct {
	// MinHitRate is the hit rate below which a cache is reported degraded.
	// Value should be between 0 and 1. Default: 0.2
	MinHitRate float64

	// MinAccesses is the number of accesses a cache must have seen before its
	// hit rate is judged, so cold caches don't alarm. Default: 100
	MinAccesses uint64
}

// CacheCheck watches hit rates across every registered cache.
type CacheCheck struct {
	source CacheStatsSource
	config CacheCheckConfig
}

// NewCacheCheck creates a cache efficacy check.
func NewCacheCheck(source CacheStatsSource, config CacheCheckConfig) *CacheCheck {
	if config.MinHitRate <= 0 || config.MinHitRate >= 1 {
		config.MinHitRate = 0.2
	}
	if config.MinAccesses == 0 {
		config.MinAccesses = 100
	}
	return &CacheCheck{source: source, config: config}
}

// Name returns the name of this checker.
func (c *CacheCheck) Name() string {
	return "caches"
}

// Check reports degraded when any warmed-up cache falls below the hit rate
// threshold.
func (c *CacheCheck) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	stats := c.source.Stats()
	details := make(map[string]any, len(stats))
	var cold []string

	for name, s := range stats {
		details[name] = map[string]any{
			"hits":      s.Hits,
			"misses":    s.Misses,
			"hit_rate":  s.HitRate,
			"evictions": s.Evictions,
		}
		if s.Hits+s.Misses < c.config.MinAccesses {
			continue
		}
		if s.HitRate < c.config.MinHitRate {
			cold = append(cold, name)
		}
	}

	if len(cold) > 0 {
		return Degraded(fmt.Sprintf("%d cache(s) below %.0f%% hit rate: %v",
			len(cold), c.config.MinHitRate*100, cold)).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d cache(s) registered", len(stats))).WithDetails(details)
}

// CoalescerCheckConfig configures the pending-backlog check.
type CoalescerCheckConfig struct {
	// MaxPending is the pending production count at which the coalescer is
	// reported unhealthy; half of it reports degraded. Default: 50
	MaxPending int
}

// CoalescerCheck watches a coalescer's pending backlog. A growing backlog
// means producers are not settling.
type CoalescerCheck struct {
	name   string
	source interface{ Stats() coalesce.Stats }
	config CoalescerCheckConfig
}

// NewCoalescerCheck creates a pending-backlog check for one named coalescer.
func NewCoalescerCheck(name string, source interface{ Stats() coalesce.Stats }, config CoalescerCheckConfig) *CoalescerCheck {
	if config.MaxPending <= 0 {
		config.MaxPending = 50
	}
	return &CoalescerCheck{name: name, source: source, config: config}
}

// Name returns the name of this checker.
func (c *CoalescerCheck) Name() string {
	return "coalescer:" + c.name
}

// Check reports on the coalescer's pending backlog.
func (c *CoalescerCheck) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	s := c.source.Stats()
	details := map[string]any{
		"active_requests": s.ActiveRequests,
		"hit_rate":        s.HitRate,
		"total_requests":  s.TotalRequests,
		"avg_response":    s.AverageResponseTime.String(),
	}

	switch {
	case s.ActiveRequests >= c.config.MaxPending:
		return Unhealthy(fmt.Sprintf("%d pending productions (limit %d)",
			s.ActiveRequests, c.config.MaxPending), ErrCheckFailed).WithDetails(details)
	case s.ActiveRequests >= c.config.MaxPending/2:
		return Degraded(fmt.Sprintf("%d pending productions approaching limit %d",
			s.ActiveRequests, c.config.MaxPending)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("%d pending productions", s.ActiveRequests)).WithDetails(details)
	}
}

// SubscriptionCheckConfig configures the bookkeeping-growth check.
type SubscriptionCheckConfig struct {
	// MaxInactive is the number of deactivated-but-not-cleaned subscriptions
	// at which the manager is reported degraded. Default: 100
	MaxInactive int
}

// SubscriptionCheck watches for dead subscription bookkeeping that a missing
// Cleanup pass would let accumulate.
type SubscriptionCheck struct {
	manager *subscribe.Manager
	config  SubscriptionCheckConfig
}

// NewSubscriptionCheck creates a bookkeeping-growth check.
func NewSubscriptionCheck(manager *subscribe.Manager, config SubscriptionCheckConfig) *SubscriptionCheck {
	if config.MaxInactive <= 0 {
		config.MaxInactive = 100
	}
	return &SubscriptionCheck{manager: manager, config: config}
}

// Name returns the name of this checker.
func (c *SubscriptionCheck) Name() string {
	return "subscriptions"
}

// Check reports degraded when inactive bookkeeping has grown past the bound.
func (c *SubscriptionCheck) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	all := c.manager.Subscriptions(subscribe.Query{IncludeInactive: true})
	active := c.manager.Stats()
	inactive := len(all) - active.Total

	details := map[string]any{
		"active":   active.Total,
		"inactive": inactive,
	}

	if inactive >= c.config.MaxInactive {
		return Degraded(fmt.Sprintf("%d inactive subscriptions awaiting cleanup (limit %d)",
			inactive, c.config.MaxInactive)).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d active subscriptions", active.Total)).WithDetails(details)
}

// Ensure all checks implement Checker
var (
	_ Checker = (*CacheCheck)(nil)
	_ Checker = (*CoalescerCheck)(nil)
	_ Checker = (*SubscriptionCheck)(nil)
)
