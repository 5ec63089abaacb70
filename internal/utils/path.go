package utils

import "strings"

// HasPathPrefix reports whether path equals prefix or lies beneath it as a
// whole segment, so "/admin" matches "/admin/x" but not "/administrator".
func HasPathPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

// MatchAnyPrefix reports whether path is under any of prefixes.
func MatchAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if HasPathPrefix(path, p) {
			return true
		}
	}
	return false
}
