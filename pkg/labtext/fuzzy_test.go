package labtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinMatcher_Threshold(t *testing.T) {
	m := NewLevenshteinMatcher(0)
	assert.Equal(t, DefaultSimilarityThreshold, m.Threshold)

	tests := []struct {
		name       string
		word       string
		candidates []string
		expected   string
		found      bool
	}{
		{"Exact", "positive", []string{"the", "positive", "sample"}, "positive", true},
		{"One substitution", "positive", []string{"p0sitive"}, "p0sitive", true},
		{"One deletion", "negative", []string{"negtive"}, "negtive", true},
		{"Opposite word below threshold", "positive", []string{"negative"}, "", false},
		{"Best of several", "positive", []string{"posit", "positiv", "p0s1t1ve"}, "positiv", true},
		{"No candidates", "positive", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Closest(tt.word, tt.candidates)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLevenshteinMatcher_CustomThreshold(t *testing.T) {
	strict := NewLevenshteinMatcher(0.95)
	_, ok := strict.Closest("positive", []string{"p0sitive"})
	assert.False(t, ok)

	loose := NewLevenshteinMatcher(0.5)
	_, ok = loose.Closest("positive", []string{"negative"})
	assert.True(t, ok)
}

type fixedMatcher struct{ hit string }

func (f fixedMatcher) Closest(word string, _ []string) (string, bool) {
	if word == f.hit {
		return word, true
	}
	return "", false
}

func TestExtractor_PluggableMatcher(t *testing.T) {
	e := NewExtractor(fixedMatcher{hit: "negative"})
	token, source := e.ExtractResult("garbled text")
	assert.Equal(t, "negative", token)
	assert.Equal(t, RESULT_FUZZY, source)
}
