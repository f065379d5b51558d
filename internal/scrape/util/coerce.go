package util

import (
	"strconv"
	"strings"
)

// ParseFloatPtr coerces a display number like "4,5" or "4.5 stars".
// Anything unparseable stays nil rather than zero.
func ParseFloatPtr(s string) *float64 {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == ',':
			b.WriteByte('.')
		default:
			if b.Len() > 0 {
				goto done
			}
		}
	}
done:
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return nil
	}
	return &f
}

// ParseIntPtr keeps only digits, so "(1 234 reviews)" coerces to 1234.
func ParseIntPtr(s string) *int {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return nil
	}
	return &n
}
