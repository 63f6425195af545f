package cache

import (
	"testing"
	"time"
)

func TestPolicy_EffectiveTTL(t *testing.T) {
	tests := []struct {
		name     string
		policy   Policy
		override time.Duration
		want     time.Duration
	}{
		{
			name:     "no policy, no override",
			policy:   NoExpiryPolicy(),
			override: 0,
			want:     0,
		},
		{
			name:     "default applies without override",
			policy:   Policy{DefaultTTL: time.Minute},
			override: 0,
			want:     time.Minute,
		},
		{
			name:     "override wins over default",
			policy:   Policy{DefaultTTL: time.Minute},
			override: 10 * time.Second,
			want:     10 * time.Second,
		},
		{
			name:     "override clamped to max",
			policy:   Policy{DefaultTTL: time.Minute, MaxTTL: 30 * time.Minute},
			override: 2 * time.Hour,
			want:     30 * time.Minute,
		},
		{
			name:     "default clamped to max",
			policy:   Policy{DefaultTTL: 2 * time.Hour, MaxTTL: time.Hour},
			override: 0,
			want:     time.Hour,
		},
		{
			name:     "NoExpiration pins despite default",
			policy:   Policy{DefaultTTL: time.Minute},
			override: NoExpiration,
			want:     0,
		},
		{
			name:     "NoExpiration pins despite max",
			policy:   Policy{DefaultTTL: time.Minute, MaxTTL: time.Hour},
			override: NoExpiration,
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.EffectiveTTL(tt.override); got != tt.want {
				t.Errorf("EffectiveTTL(%v) = %v, want %v", tt.override, got, tt.want)
			}
		})
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.DefaultTTL != 5*time.Minute {
		t.Errorf("DefaultTTL = %v, want 5m", p.DefaultTTL)
	}
	if p.MaxTTL != time.Hour {
		t.Errorf("MaxTTL = %v, want 1h", p.MaxTTL)
	}
}
