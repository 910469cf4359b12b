package cache

import "strings"

// matchPattern implements the glob subset shared by the memory backends:
// "*" matches everything, a single "*" may appear as prefix, suffix or in
// the middle. Anything else is an exact match. An empty pattern matches
// everything.
func matchPattern(key, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	if strings.HasSuffix(pattern, "*") && !strings.HasPrefix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		if !strings.Contains(prefix, "*") {
			return strings.HasPrefix(key, prefix)
		}
	}

	if strings.HasPrefix(pattern, "*") && !strings.HasSuffix(pattern, "*") {
		suffix := strings.TrimPrefix(pattern, "*")
		if !strings.Contains(suffix, "*") {
			return strings.HasSuffix(key, suffix)
		}
	}

	if parts := strings.Split(pattern, "*"); len(parts) == 2 {
		return strings.HasPrefix(key, parts[0]) && strings.HasSuffix(key, parts[1])
	}

	return key == pattern
}
