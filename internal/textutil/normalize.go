package textutil

import "strings"

// Normalize trims leading/trailing whitespace and collapses internal
// whitespace runs to single spaces. An all-whitespace input becomes "".
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
