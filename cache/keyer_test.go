package cache

import (
	"strings"
	"testing"
)

func TestDefaultKeyer_EmbedsPath(t *testing.T) {
	k := NewDefaultKeyer()

	key, err := k.Key("notes", "vault/daily.md", nil)
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if key != "notes:vault/daily.md" {
		t.Errorf("key = %q, want notes:vault/daily.md", key)
	}
	if !strings.Contains(key, "vault/daily.md") {
		t.Error("derived key must embed the raw path for invalidation matching")
	}
}

func TestDefaultKeyer_Deterministic(t *testing.T) {
	k := NewDefaultKeyer()

	// Maps with the same contents must derive the same key regardless of
	// insertion order.
	a := map[string]any{"depth": 2, "format": "json", "tags": []any{"x", "y"}}
	b := map[string]any{"tags": []any{"x", "y"}, "format": "json", "depth": 2}

	keyA, err := k.Key("search", "vault", a)
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	keyB, err := k.Key("search", "vault", b)
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if keyA != keyB {
		t.Errorf("same params derived different keys: %q vs %q", keyA, keyB)
	}
}

func TestDefaultKeyer_DistinguishesParams(t *testing.T) {
	k := NewDefaultKeyer()

	keyA, _ := k.Key("search", "vault", map[string]any{"q": "alpha"})
	keyB, _ := k.Key("search", "vault", map[string]any{"q": "beta"})
	if keyA == keyB {
		t.Error("different params must derive different keys")
	}
}

func TestDefaultKeyer_NestedStructures(t *testing.T) {
	k := NewDefaultKeyer()

	params := map[string]any{
		"filter": map[string]any{"b": 1, "a": 2},
		"list":   []any{map[string]any{"z": 1, "y": 2}},
	}
	key1, err := k.Key("search", "vault", params)
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	key2, _ := k.Key("search", "vault", map[string]any{
		"list":   []any{map[string]any{"y": 2, "z": 1}},
		"filter": map[string]any{"a": 2, "b": 1},
	})
	if key1 != key2 {
		t.Errorf("nested params derived different keys: %q vs %q", key1, key2)
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid", "notes:vault/daily.md", nil},
		{"empty", "", ErrInvalidKey},
		{"whitespace only", "   ", ErrInvalidKey},
		{"newline", "notes:a\nb", ErrInvalidKey},
		{"carriage return", "notes:a\rb", ErrInvalidKey},
		{"too long", strings.Repeat("k", MaxKeyLength+1), ErrKeyTooLong},
		{"max length ok", strings.Repeat("k", MaxKeyLength), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateKey(tt.key); err != tt.wantErr {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}
