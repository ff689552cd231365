// Package textutil provides input normalization and small closed-vocabulary
// matching helpers used by the conversation engine.
package textutil

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, strips diacritics and trims surrounding whitespace so
// inbound text can be matched against keyword lists.
func Normalize(s string) string {
	out, _, err := transform.String(stripAccents, s)
	if err != nil {
		// Transform failures leave the input usable, just unnormalized.
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Digits returns only the decimal digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ContainsAny reports whether the normalized text contains any of the given
// keywords as a substring. Keywords are expected pre-normalized.
func ContainsAny(normalized string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// BestMatch fuzzy-matches input against a closed vocabulary using bounded
// edit distance. It returns the closest option within maxDistance, or "" when
// nothing is close enough. Intended only for small fixed sets (payment
// methods, confirmation words); do not use for open-ended matching.
func BestMatch(input string, options []string, maxDistance int) string {
	cleaned := Normalize(input)
	best := ""
	bestDist := maxDistance + 1
	for _, opt := range options {
		d := levenshtein.ComputeDistance(cleaned, Normalize(opt))
		if d < bestDist {
			bestDist = d
			best = opt
		}
	}
	return best
}
