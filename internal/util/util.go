// Package util provides small shared helpers.
package util

import "strings"

// MaskKeyToken obscures a key token for logging purposes, keeping the prefix
// segment and the last few characters.
func MaskKeyToken(token string) string {
	if idx := strings.Index(token, "-"); idx > 0 && len(token) > idx+5 {
		return token[:idx] + "-..." + token[len(token)-4:]
	}
	if len(token) > 8 {
		return token[:4] + "..." + token[len(token)-4:]
	} else if len(token) > 4 {
		return token[:2] + "..." + token[len(token)-2:]
	} else if len(token) > 2 {
		return token[:1] + "..." + token[len(token)-1:]
	}
	return token
}
