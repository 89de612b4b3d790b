// Package utils holds tiny layer-agnostic helpers. Nothing in here may
// import domain or transport packages.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 integer and falls back to def when s is
// empty or not a valid int. Input is not trimmed; callers pass raw query
// values and whitespace counts as invalid.
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
