package utils

import (
	"fmt"
	"strings"
)

func ShortenString(s string, l int) string {
	r := []rune(s)
	if len(r) > l && l != 0 {
		return fmt.Sprintf("%s...", string(r[:l]))
	}
	return s
}

// FirstContained returns the first of subs that occurs in s.
func FirstContained(s string, subs []string) (string, bool) {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return sub, true
		}
	}
	return "", false
}

// CollapseSpace trims s and replaces inner whitespace runs by one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
