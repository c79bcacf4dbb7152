package algorithms

import (
	"github.com/pmezard/go-difflib/difflib"
)

// SequenceRatio returns the sequence matcher ratio (0..1) of candidate against
// word, comparing character by character. Junk heuristics apply to word.
func SequenceRatio(candidate, word string) float64 {
	m := difflib.NewMatcher(chars(candidate), chars(word))
	return m.Ratio()
}

// CloseMatch returns the candidate with the highest SequenceRatio to word when
// that ratio is at least cutoff. Equal ratios resolve to the lexicographically
// greater candidate.
func CloseMatch(word string, candidates []string, cutoff float64) (string, bool) {
	best := ""
	bestScore := -1.0
	wordChars := chars(word)
	for _, c := range candidates {
		m := difflib.NewMatcher(chars(c), wordChars)
		if m.RealQuickRatio() < cutoff || m.QuickRatio() < cutoff {
			continue
		}
		score := m.Ratio()
		if score < cutoff {
			continue
		}
		if score > bestScore || (score == bestScore && c > best) {
			best = c
			bestScore = score
		}
	}
	return best, bestScore >= 0
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
