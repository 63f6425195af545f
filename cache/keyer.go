package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Keyer derives deterministic composite cache keys.
//
// Contract:
// - Determinism: same inputs must produce same key, regardless of map
//   iteration order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Key derives a cache key from a cache category, the resource path the
	// entry is about, and optional call parameters.
	Key(category, path string, params any) (string, error)
}

// DefaultKeyer derives keys that embed the raw resource path, so central
// invalidation can match stored keys against a changed path by substring.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key derives a deterministic composite key.
// Format: <category>:<path> or <category>:<path>:<hash>
// where hash is the first 16 hex characters of SHA-256(canonical JSON(params)).
func (k *DefaultKeyer) Key(category, path string, params any) (string, error) {
	key := category + ":" + path
	if params != nil {
		canonical, err := canonicalize(params)
		if err != nil {
			return "", fmt.Errorf("cache: failed to canonicalize params: %w", err)
		}
		hash := sha256.Sum256(canonical)
		key += ":" + hex.EncodeToString(hash[:8]) // First 8 bytes = 16 hex chars
	}

	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// canonicalize produces a deterministic JSON representation of the input.
// Maps are sorted by key to ensure consistent ordering.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	// For maps, sort keys for determinism
	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		// For other types, use standard JSON encoding
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	// Sort keys
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Build ordered JSON object
	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		// Key
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyJSON...)
		result = append(result, ':')

		// Value (recursively canonicalized)
		valJSON, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valJSON...)
	}
	result = append(result, '}')
	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		valJSON, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valJSON...)
	}
	result = append(result, ']')
	return result, nil
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
