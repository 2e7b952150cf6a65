// Package utils holds small helpers shared by the transport layer.
package utils

import "strconv"

// BoundedInt parses s as an int and clamps it to [lo, hi]. An empty or
// unparsable value yields def.
//
//	utils.BoundedInt("", 50, 1, 500)    // 50
//	utils.BoundedInt("9999", 50, 1, 500) // 500
//	utils.BoundedInt("x", 50, 1, 500)   // 50
func BoundedInt(s string, def, lo, hi int) int {
	n, err := strconv.Atoi(s)
	if s == "" || err != nil {
		return def
	}
	return min(max(n, lo), hi)
}
