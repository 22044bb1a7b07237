// Package utils provides small helper functions shared across layers,
// independent of the widget's session and lead domain.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead. The message-history
// handler uses it for the page and page_size query parameters, where a
// missing or garbled value falls back to the default rather than erroring.
//
// Example:
//
//	page := utils.AtoiDefault(c.Query("page"), 1)      // "" -> 1
//	size := utils.AtoiDefault(c.Query("page_size"), 20) // "x" -> 20
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
