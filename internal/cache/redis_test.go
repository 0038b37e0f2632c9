package cache

import (
	"strings"
	"testing"
)

func TestHashKey(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
	}{
		{
			name:  "single part",
			parts: []string{"test"},
		},
		{
			name:  "multiple parts",
			parts: []string{"analytics", "42", "likes", "desc", "all"},
		},
		{
			name:  "empty parts",
			parts: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashed1 := HashKey(tt.parts...)
			hashed2 := HashKey(tt.parts...)

			// Hash should be consistent
			if hashed1 != hashed2 {
				t.Errorf("HashKey() should be consistent, got %s and %s", hashed1, hashed2)
			}

			// Hash should be 32 characters (MD5 hex)
			if len(hashed1) != 32 {
				t.Errorf("HashKey() should return 32 character hex string, got length %d", len(hashed1))
			}
		})
	}
}

func TestHashKeyDistinct(t *testing.T) {
	a := HashKey("analytics", "1", "likes")
	b := HashKey("analytics", "1", "comments")
	if a == b {
		t.Error("HashKey() should differ for different parts")
	}
}

func TestCache_NamespaceKey(t *testing.T) {
	cache := &Cache{}

	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{
			name:     "simple key",
			key:      "test",
			expected: "instalens:test",
		},
		{
			name:     "key with colon",
			key:      "analytics:42",
			expected: "instalens:analytics:42",
		},
		{
			name:     "empty key",
			key:      "",
			expected: "instalens:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cache.namespaceKey(tt.key)
			if result != tt.expected {
				t.Errorf("namespaceKey() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestCache_ChildPatternExcludesSiblingIDs(t *testing.T) {
	cache := &Cache{}

	pattern := cache.childPattern("profile:1")
	if pattern != "instalens:profile:1:*" {
		t.Errorf("childPattern() = %v, want instalens:profile:1:*", pattern)
	}

	// The literal part of the pattern must match nested keys only, never
	// a sibling profile whose id shares a decimal prefix
	literal := strings.TrimSuffix(pattern, "*")
	if strings.HasPrefix(cache.namespaceKey("profile:10"), literal) {
		t.Error("profile:10 must not match the profile:1 pattern")
	}
	if !strings.HasPrefix(cache.namespaceKey("profile:1:runs"), literal) {
		t.Error("keys nested under profile:1 should match the pattern")
	}

	if got := cache.childPattern("analytics:42"); got != "instalens:analytics:42:*" {
		t.Errorf("childPattern() = %v, want instalens:analytics:42:*", got)
	}
}
