package cache

import "time"

// Policy configures expiry behavior.
type Policy struct {
	// DefaultTTL is the TTL applied when an entry does not specify its own.
	// If zero, entries never expire by default.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration
}

// DefaultPolicy returns the default expiry policy.
// DefaultTTL: 5 minutes, MaxTTL: 1 hour
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 5 * time.Minute,
		MaxTTL:     1 * time.Hour,
	}
}

// NoExpiryPolicy returns a policy under which entries never expire unless
// they carry their own TTL.
func NoExpiryPolicy() Policy {
	return Policy{}
}

// EffectiveTTL returns the TTL to use for an entry, applying the default and
// clamping. A zero result means the entry never expires. The NoExpiration
// sentinel pins the entry even when a default TTL is set.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	if override == NoExpiration {
		return 0
	}

	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}

	// Clamp to MaxTTL if set
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}

	return ttl
}
