package cache

import (
	"errors"
	"strings"
)

// MaxKeyLength is the maximum allowed length for a derived cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidCapacity = errors.New("cache: capacity must be positive")
	ErrInvalidKey      = errors.New("cache: key is invalid")
	ErrKeyTooLong      = errors.New("cache: key exceeds max length")
)

// ValidateKey checks if a derived key is usable for caching and central
// invalidation.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
