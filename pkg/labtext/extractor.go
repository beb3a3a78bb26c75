// Package labtext pulls disease, result and Ct readings out of lab-report text.
// Extraction is total: absent fields degrade to the Unknown / N/A sentinels.
package labtext

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/zoonotic-report-server/internal/domain"
)

// ResultSource records which rule produced the result token.
type ResultSource string

const (
	RESULT_LABELED ResultSource = "labeled"
	RESULT_LITERAL ResultSource = "literal"
	RESULT_FUZZY   ResultSource = "fuzzy"
	RESULT_NONE    ResultSource = "none"
)

// Unknown is the token returned when no disease or result is present.
const Unknown = "Unknown"

var (
	diseasePattern = regexp.MustCompile(`(?i)\b(Nipah|Rabies|Dengue|Zoonotic)\b`)

	labeledResultPattern = regexp.MustCompile(`(?i)overall\s+result\s*:\s*(not\s+detected|positive|negative|detected|possible|unclear)\b`)
	literalResultPattern = regexp.MustCompile(`(?i)\b(not\s+detected|negative|positive|detected|unclear)\b`)

	// <token> gene ... (Ct = 23.5), same line only
	inlineCtPattern = regexp.MustCompile(`(?i)\b([A-Za-z0-9]+)\s+gene\b[^\n]*?\(\s*C\s?t\s*=?\s*(\d+(?:\.\d+)?)\s*\)`)
	// N gene   Detected   23.8
	tabularCtPattern = regexp.MustCompile(`(?i)\b(NS1|E|N|G)\s+gene\s+Detected\s+(\d+(?:\.\d+)?)`)

	scalarCtPattern = regexp.MustCompile(`(?i)\(?C\s?t(?:\s*Value)?\s*[:=]?\s*(\d+(?:\.\d+)?)\)?`)
)

// markerVocabulary maps the upper-cased token to its canonical spelling.
var markerVocabulary = map[string]string{
	"NS1": "NS1", "NS3": "NS3", "NS5": "NS5",
	"E": "E", "N": "N", "G": "G", "L": "L", "M": "M", "P": "P", "F": "F", "C": "C", "S": "S",
	"NP": "NP", "PRM": "PRM", "RDRP": "RdRp",
	"ORF1AB": "ORF1ab", "ORF1A": "ORF1a", "ORF1B": "ORF1b",
}

// fuzzyTargets are looked up in order; the first hit wins.
var fuzzyTargets = []string{"positive", "negative"}

// Fields is the raw output of a single extraction.
type Fields struct {
	DiseaseToken string
	ResultToken  string
	ResultSource ResultSource
	Biomarkers   domain.Biomarkers
	CtValue      string
}

// Extractor applies the ordered pattern rules. The zero value is not usable; use
// NewExtractor.
type Extractor struct {
	matcher FuzzyMatcher
}

// NewExtractor creates an extractor. A nil matcher uses a LevenshteinMatcher with
// the default threshold.
func NewExtractor(matcher FuzzyMatcher) *Extractor {
	if matcher == nil {
		matcher = NewLevenshteinMatcher(DefaultSimilarityThreshold)
	}
	return &Extractor{matcher: matcher}
}

var defaultExtractor = NewExtractor(nil)

// Extract runs the default extractor over text.
func Extract(text string) Fields {
	return defaultExtractor.Extract(text)
}

// Extract pulls every field out of text. It never fails.
func (e *Extractor) Extract(text string) Fields {
	resultToken, source := e.ExtractResult(text)
	return Fields{
		DiseaseToken: ExtractDisease(text),
		ResultToken:  resultToken,
		ResultSource: source,
		Biomarkers:   ExtractBiomarkers(text),
		CtValue:      ExtractCtValue(text),
	}
}

// ExtractDisease returns the first disease mention, or Unknown.
func ExtractDisease(text string) string {
	if m := diseasePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return Unknown
}

// ExtractResult resolves the result token. A labeled "Overall result:" field always
// wins over free-floating literals, which win over fuzzy matches.
func (e *Extractor) ExtractResult(text string) (string, ResultSource) {
	if m := labeledResultPattern.FindStringSubmatch(text); m != nil {
		return collapseSpaces(m[1]), RESULT_LABELED
	}
	if m := literalResultPattern.FindStringSubmatch(text); m != nil {
		return collapseSpaces(m[1]), RESULT_LITERAL
	}
	words := documentWords(text)
	if len(words) > 0 {
		for _, target := range fuzzyTargets {
			if _, ok := e.matcher.Closest(target, words); ok {
				return target, RESULT_FUZZY
			}
		}
	}
	return Unknown, RESULT_NONE
}

// ExtractBiomarkers unions the inline and tabular grammars. Inline matches are
// applied first so a tabular reading of the same gene overwrites it.
func ExtractBiomarkers(text string) domain.Biomarkers {
	var out domain.Biomarkers
	for _, pattern := range []*regexp.Regexp{inlineCtPattern, tabularCtPattern} {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			marker, ok := markerVocabulary[strings.ToUpper(m[1])]
			if !ok {
				continue
			}
			ct, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			out.Set(marker+" gene", ct)
		}
	}
	return out
}

// ExtractCtValue returns the first loose "Ct <number>" reading as written, or N/A.
func ExtractCtValue(text string) string {
	if m := scalarCtPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return domain.NotAvailable
}

// IsMarker reports whether token is in the recognized marker vocabulary.
func IsMarker(token string) bool {
	_, ok := markerVocabulary[strings.ToUpper(token)]
	return ok
}

func documentWords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := fields[:0]
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

func collapseSpaces(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
