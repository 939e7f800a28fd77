// Package strings holds small slice helpers shared by config and services.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each value, drops blanks and keeps the first of any
// repeats. Order is preserved; nil and empty input are returned as is.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
