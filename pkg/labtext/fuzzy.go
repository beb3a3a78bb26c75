package labtext

import (
	"github.com/agext/levenshtein"
)

// DefaultSimilarityThreshold is the minimum normalized edit-distance similarity a
// document word needs to count as a fuzzy hit.
const DefaultSimilarityThreshold = 0.7

// FuzzyMatcher finds the closest candidate to a target word.
type FuzzyMatcher interface {
	// Closest returns the best-scoring candidate at or above the matcher's
	// threshold, or false when none qualifies.
	Closest(word string, candidates []string) (string, bool)
}

// LevenshteinMatcher scores candidates with normalized Levenshtein similarity and
// keeps a single best match.
type LevenshteinMatcher struct {
	Threshold float64
	params    *levenshtein.Params
}

// NewLevenshteinMatcher creates a matcher. A non-positive threshold falls back to
// DefaultSimilarityThreshold.
func NewLevenshteinMatcher(threshold float64) *LevenshteinMatcher {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &LevenshteinMatcher{
		Threshold: threshold,
		params:    levenshtein.NewParams(),
	}
}

// Closest implements FuzzyMatcher. Ties keep the earliest candidate.
func (m *LevenshteinMatcher) Closest(word string, candidates []string) (string, bool) {
	best := ""
	bestScore := -1.0
	for _, c := range candidates {
		score := levenshtein.Similarity(word, c, m.params)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore < m.Threshold {
		return "", false
	}
	return best, true
}

// Similarity exposes the raw score, mostly for tuning the threshold.
func (m *LevenshteinMatcher) Similarity(a, b string) float64 {
	return levenshtein.Similarity(a, b, m.params)
}
