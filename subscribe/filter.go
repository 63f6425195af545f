package subscribe

import (
	"strings"

	"github.com/jonwraymond/cachekit/event"
)

// Filter narrows which payloads reach a subscription. All set conditions are
// combined with AND; a nil Filter matches everything.
type Filter struct {
	// CacheType requires an exact match on the payload's cache category.
	CacheType string

	// Operations requires the payload's operation to be one of the set.
	Operations []event.Operation

	// KeyPattern is a glob over the payload key where '*' matches any
	// substring, including separators.
	KeyPattern string

	// Custom is an arbitrary predicate over the payload.
	Custom func(event.Payload) bool
}

// Matches reports whether the payload passes every set condition.
func (f *Filter) Matches(p event.Payload) bool {
	if f == nil {
		return true
	}
	if f.CacheType != "" && f.CacheType != p.CacheType {
		return false
	}
	if len(f.Operations) > 0 {
		found := false
		for _, op := range f.Operations {
			if op == p.Operation {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.KeyPattern != "" && !matchGlob(f.KeyPattern, p.Key) {
		return false
	}
	if f.Custom != nil && !f.Custom(p) {
		return false
	}
	return true
}

// matchGlob matches s against pattern, where each '*' matches any substring.
// Unlike filepath.Match, '*' crosses path separators, which is what composite
// cache keys need.
func matchGlob(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return s == pattern
	}

	// Anchored prefix
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	// Middle fragments, in order
	for _, mid := range parts[1 : len(parts)-1] {
		if mid == "" {
			continue
		}
		idx := strings.Index(s, mid)
		if idx < 0 {
			return false
		}
		s = s[idx+len(mid):]
	}

	// Anchored suffix
	return strings.HasSuffix(s, parts[len(parts)-1])
}
