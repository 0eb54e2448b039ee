package signature

import (
	"strings"
	"unicode"
)

// Stopwords excluded from significant-word matching. Deliberately small:
// over-filtering hurts short labels more than under-filtering hurts long
// ones.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "in": {}, "is": {}, "of": {}, "on": {}, "or": {},
	"the": {}, "to": {}, "with": {}, "your": {},
}

const (
	maxSignificantWords = 10
	minWordLen          = 3
)

// Normalize lowercases s, replaces punctuation with spaces and collapses
// whitespace. Two texts that differ only in case, punctuation or spacing
// normalize to the same string.
func Normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return unicode.ToLower(r)
		default:
			return ' '
		}
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// SignificantWords extracts the words of s worth matching on: normalized,
// at least three runes, not a stopword, capped so enormous labels cannot
// dominate scoring.
func SignificantWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(Normalize(s)) {
		if len([]rune(w)) < minWordLen {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out = append(out, w)
		if len(out) == maxSignificantWords {
			break
		}
	}
	return out
}

// clip truncates s to at most n runes, marking the cut.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}

// WordOverlap reports the fraction of want's words found in have. Both
// slices are expected to be normalized. An empty want overlaps nothing.
func WordOverlap(want, have []string) float64 {
	if len(want) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(have))
	for _, w := range have {
		set[w] = struct{}{}
	}
	matched := 0
	for _, w := range want {
		if _, ok := set[w]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(want))
}
