package cache

import "testing"

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		key     string
		pattern string
		want    bool
	}{
		{"user:1", "", true},
		{"user:1", "*", true},
		{"user:1", "user:*", true},
		{"session:1", "user:*", false},
		{"file.json", "*.json", true},
		{"file.txt", "*.json", false},
		{"a:middle:z", "a:*:z", true},
		{"a:middle:x", "a:*:z", false},
		{"exact", "exact", true},
		{"exact", "exac", false},
		{"", "*", true},
	}

	for _, tt := range tests {
		if got := matchPattern(tt.key, tt.pattern); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.key, tt.pattern, got, tt.want)
		}
	}
}
