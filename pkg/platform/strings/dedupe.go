// Package strings provides string helpers for configuration parsing.
package strings

import (
	"strings"
)

// SplitCSV splits a comma-separated value, trims each element and drops
// empties and duplicates. Order is preserved.
//
//	SplitCSV(" a, b,,a ") // []string{"a", "b"}
func SplitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return dedupe(strings.Split(value, ","), strings.TrimSpace)
}

// SplitCSVLower is SplitCSV with case-insensitive deduplication. Used for
// hex addresses, where checksum casing is not significant.
func SplitCSVLower(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return dedupe(strings.Split(value, ","), func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}

func dedupe(values []string, normalize func(string) string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		n := normalize(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			result = append(result, n)
		}
	}
	return result
}
