package service

import (
	"strings"
	"unicode"

	"github.com/zoonotic-report-server/internal/domain"
)

// stemLength is how many leading characters of a keyword an input token must share.
const stemLength = 3

type diseaseKeywords struct {
	disease  domain.Disease
	keywords []string
}

// keywordTable is evaluated in order; candidates come out in the same order.
var keywordTable = []diseaseKeywords{
	{domain.DENGUE, []string{"fever", "headache", "rash", "pain", "vomiting"}},
	{domain.RABIES, []string{"bite", "dog", "animal", "saliva", "scratch"}},
	{domain.NIPAH, []string{"respiratory", "cough", "encephalitis", "seizure", "confusion", "cold"}},
}

// KeywordMatcher is the coarse stem-matching symptom strategy. It has no external
// dependencies and never fails.
type KeywordMatcher struct{}

// NewKeywordMatcher creates a keyword matcher.
func NewKeywordMatcher() *KeywordMatcher {
	return &KeywordMatcher{}
}

// Match returns every disease with at least one matching keyword. With no matches
// a single Unknown/Unclear candidate carrying the consult message is returned.
func (m *KeywordMatcher) Match(text string) []domain.KeywordCandidate {
	tokens := symptomWords(text)

	var out []domain.KeywordCandidate
	for _, entry := range keywordTable {
		var matched []string
		for _, kw := range entry.keywords {
			if anyHasStem(tokens, stem(kw)) {
				matched = append(matched, kw)
			}
		}
		if len(matched) == 0 {
			continue
		}
		out = append(out, domain.KeywordCandidate{
			Disease:         entry.disease,
			MatchedSymptoms: matched,
			Count:           len(matched),
			Result:          domain.POSSIBLE,
			Suggestion:      Suggest(entry.disease, domain.POSSIBLE),
		})
	}

	if len(out) == 0 {
		msg := SuggestionUnmatched
		out = []domain.KeywordCandidate{{
			Disease:         domain.UNKNOWN_DISEASE,
			MatchedSymptoms: []string{},
			Count:           0,
			Result:          domain.UNCLEAR,
			Suggestion:      &msg,
		}}
	}
	return out
}

func symptomWords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

func stem(word string) string {
	r := []rune(word)
	if len(r) > stemLength {
		r = r[:stemLength]
	}
	return string(r)
}

func anyHasStem(tokens []string, prefix string) bool {
	for _, t := range tokens {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}
