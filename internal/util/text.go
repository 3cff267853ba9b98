package util

import (
	"regexp"
	"strings"
)

var (
	reLineBreaks = regexp.MustCompile(`[\r\n]+`)
	reSpaces     = regexp.MustCompile(`\s+`)
	reQuotes     = regexp.MustCompile(`["'` + "`" + `«»]`)
	reNonLabel   = regexp.MustCompile(`[^A-Z0-9\-/\s.]`)
)

// CleanHeader strips embedded line breaks and surrounding whitespace from a
// column header. Spreadsheet exports routinely wrap headers mid-word
// ("Month-end \ninventory").
func CleanHeader(input string) string {
	s := reLineBreaks.ReplaceAllString(input, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeLabel produces the canonical comparison form of a product label:
// uppercase, quotes and stray punctuation dropped, spacing collapsed.
func NormalizeLabel(input string) string {
	s := strings.ToUpper(CleanHeader(input))
	s = reQuotes.ReplaceAllString(s, " ")
	s = reNonLabel.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func Tokenize(input string) []string {
	parts := strings.Split(NormalizeLabel(input), " ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len([]rune(p)) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

// DiceCoefficient scores bigram overlap between two normalized labels.
func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }
