// Package utils provides small helpers shared by the transport layer.
package utils

import "strconv"

// ClampInt parses s as an int and bounds it to [min, max]. Empty or invalid
// input yields def (also bounded). A non-positive max disables the upper bound.
func ClampInt(s string, def, min, max int) int {
	n, err := strconv.Atoi(s)
	if s == "" || err != nil {
		n = def
	}
	if n < min {
		n = min
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}
