// Package domain contains the core entities shared by the lab-report extraction pipeline
// and the symptom-based disease inference path: canonical disease and result vocabularies,
// the persisted Report record and the collaborator interfaces the pipeline depends on.
package domain

import (
	"fmt"
	"strings"
)

// Disease is the canonical disease identifier a raw extracted token is normalized into.
type Disease string

const (
	DENGUE               Disease = "Dengue"
	NIPAH                Disease = "Nipah"
	RABIES               Disease = "Rabies"
	ZOONOTIC_UNSPECIFIED Disease = "Zoonotic-unspecified"
	UNKNOWN_DISEASE      Disease = "Unknown"
)

// Result is the canonical test outcome vocabulary.
type Result string

const (
	POSITIVE       Result = "Positive"
	NEGATIVE       Result = "Negative"
	POSSIBLE       Result = "Possible"
	UNCLEAR        Result = "Unclear"
	UNKNOWN_RESULT Result = "Unknown"
)

// Source records which pipeline path produced a Report.
type Source string

const (
	SOURCE_UPLOAD          Source = "upload"
	SOURCE_SYMPTOM_KEYWORD Source = "symptom-keyword"
	SOURCE_SYMPTOM_ML      Source = "symptom-ml"
)

// NotAvailable is the sentinel used for scalar fields that could not be extracted.
const NotAvailable = "N/A"

// AllDiseases lists every canonical disease in declaration order.
func AllDiseases() []Disease {
	return []Disease{DENGUE, NIPAH, RABIES, ZOONOTIC_UNSPECIFIED, UNKNOWN_DISEASE}
}

// AllResults lists every canonical result in declaration order.
func AllResults() []Result {
	return []Result{POSITIVE, NEGATIVE, POSSIBLE, UNCLEAR, UNKNOWN_RESULT}
}

// IsValid reports whether d is one of the canonical diseases.
func (d Disease) IsValid() bool {
	switch d {
	case DENGUE, NIPAH, RABIES, ZOONOTIC_UNSPECIFIED, UNKNOWN_DISEASE:
		return true
	default:
		return false
	}
}

func (d Disease) String() string {
	return string(d)
}

// ParseDisease maps any raw token to a canonical disease. The mapping is total:
// case-insensitive containment of a known disease name wins, anything mentioning
// "zoonotic" is unspecified, everything else is Unknown.
func ParseDisease(token string) Disease {
	t := strings.ToLower(strings.TrimSpace(token))
	switch {
	case strings.Contains(t, "nipah"):
		return NIPAH
	case strings.Contains(t, "rabies"):
		return RABIES
	case strings.Contains(t, "dengue"):
		return DENGUE
	case strings.Contains(t, "zoonotic"):
		return ZOONOTIC_UNSPECIFIED
	default:
		return UNKNOWN_DISEASE
	}
}

// UnmarshalText routes decoding through ParseDisease so a stored value can never
// produce a disease outside the enumeration.
func (d *Disease) UnmarshalText(b []byte) error {
	*d = ParseDisease(string(b))
	return nil
}

// IsValid reports whether r is one of the canonical results.
func (r Result) IsValid() bool {
	switch r {
	case POSITIVE, NEGATIVE, POSSIBLE, UNCLEAR, UNKNOWN_RESULT:
		return true
	default:
		return false
	}
}

func (r Result) String() string {
	return string(r)
}

// IsPositiveLike reports whether the result warrants clinical guidance.
func (r Result) IsPositiveLike() bool {
	return r == POSITIVE || r == POSSIBLE
}

// ParseResult maps a raw result token to a canonical result. "not detected" is checked
// before "detected" so the negated form is never read as a positive.
func ParseResult(token string) Result {
	t := strings.Join(strings.Fields(strings.ToLower(token)), " ")
	switch {
	case strings.Contains(t, "not detected"), t == "negative":
		return NEGATIVE
	case strings.Contains(t, "positive"), strings.Contains(t, "detected"):
		return POSITIVE
	case strings.Contains(t, "possible"):
		return POSSIBLE
	case strings.Contains(t, "unclear"):
		return UNCLEAR
	default:
		return UNKNOWN_RESULT
	}
}

// UnmarshalText routes decoding through ParseResult.
func (r *Result) UnmarshalText(b []byte) error {
	*r = ParseResult(string(b))
	return nil
}

// IsValid reports whether s is a known provenance tag.
func (s Source) IsValid() bool {
	switch s {
	case SOURCE_UPLOAD, SOURCE_SYMPTOM_KEYWORD, SOURCE_SYMPTOM_ML:
		return true
	default:
		return false
	}
}

func (s Source) String() string {
	return string(s)
}

// ParseSource validates a provenance tag.
func ParseSource(v string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(v)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: unknown report source %q", ErrInvalidInput, v)
	}
	return s, nil
}
