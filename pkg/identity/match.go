package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lower-cases s and strips diacritics so "José" matches "jose".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// nameMatch returns the fraction of name tokens contained in title.
// Tokens match as substrings, so "jan" matches "january".
func nameMatch(name, title string) float64 {
	parts := strings.Fields(fold(name))
	if len(parts) == 0 {
		return 0
	}
	t := fold(title)
	matched := 0
	for _, p := range parts {
		if strings.Contains(t, p) {
			matched++
		}
	}
	return float64(matched) / float64(len(parts))
}

// locationMatch returns 1 when location appears in text, else 0.
func locationMatch(location, text string) float64 {
	loc := strings.TrimSpace(fold(location))
	if loc == "" {
		return 0
	}
	if strings.Contains(fold(text), loc) {
		return 1
	}
	return 0
}

func confidence(nameScore, locScore float64, evidence int) float64 {
	corroboration := min(1, float64(evidence)/4)
	return clamp(0.1+0.55*nameScore+0.2*locScore+0.15*corroboration, 0, maxConfidence)
}

func clamp(f, lo, hi float64) float64 {
	return max(lo, min(hi, f))
}
