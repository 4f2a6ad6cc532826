package helpers

import (
	"errors"
	"strings"
)

func GetSplitPart(target string, separate string, index int) (string, error) {
	parts := strings.Fields(target)
	if separate != " " {
		parts = strings.Split(target, separate)
	}
	if index >= len(parts) {
		return "", errors.New("index out of range")
	}
	return parts[index], nil
}

// FirstRunes returns at most n leading runes of s
func FirstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
