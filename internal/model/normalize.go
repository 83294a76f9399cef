package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// lowerName produces a canonical comparison key for a company name:
// NFKC-normalized, lowercased, whitespace collapsed. Keeps dedup stable
// across sources that report the same name with different unicode forms.
func lowerName(name string) string {
	s := norm.NFKC.String(name)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}
