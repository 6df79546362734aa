// Package strings provides string list helpers for configuration input.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each value and drops empties and repeats, keeping the
// first occurrence order.
func DedupeAndTrim(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// SplitList splits a separated list such as "a:9092, b:9092" and cleans it
// with DedupeAndTrim. An empty input yields nil.
func SplitList(s, sep string) []string {
	out := DedupeAndTrim(strings.Split(s, sep))
	if len(out) == 0 {
		return nil
	}
	return out
}
