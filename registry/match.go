package registry

import (
	"net/url"
	"strings"

	"github.com/jonwraymond/cachekit/event"
)

// invalidationTargets collects every string a stored key should be matched
// against for the given event: the key, the path, the rename destination, and
// the percent-encoded/decoded variant of each. Different caches key on
// different encodings of the same path, so both forms must be checked. Rename
// includes the destination because stale entries for it may already exist
// from an earlier probe.
func invalidationTargets(p event.Payload) []string {
	seen := make(map[string]struct{}, 6)
	var targets []string

	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		targets = append(targets, s)
	}

	for _, raw := range []string{p.Key, p.Path, p.NewPath} {
		add(raw)
		for _, v := range encodingVariants(raw) {
			add(v)
		}
	}
	return targets
}

// encodingVariants returns the percent-encoded and percent-decoded forms of s
// that differ from s itself.
func encodingVariants(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if esc := url.PathEscape(s); esc != s {
		out = append(out, esc)
	}
	if esc := url.QueryEscape(s); esc != s && esc != url.PathEscape(s) {
		out = append(out, esc)
	}
	if dec, err := url.PathUnescape(s); err == nil && dec != s {
		out = append(out, dec)
	}
	return out
}

// keyReferences reports whether a stored key references any target: exact
// match or substring. Substring matching over composite keys is an accepted
// approximation; it can coincidentally over-match, which is safe, where exact
// parsing could under-match and leave stale reads.
func keyReferences(stored string, targets []string) bool {
	for _, t := range targets {
		if stored == t || strings.Contains(stored, t) {
			return true
		}
	}
	return false
}
