package service

import (
	"fmt"

	"github.com/zoonotic-report-server/internal/domain"
)

// Clinical guidance attached to positive-like results.
const (
	SuggestionNipah   = "Seek immediate medical attention and follow strict isolation protocols."
	SuggestionRabies  = "Emergency medical treatment is required. Contact a doctor immediately."
	SuggestionDengue  = "Consult a physician for proper diagnosis and management of symptoms. Stay hydrated."
	SuggestionGeneric = "Possible zoonotic disease detected. Consult a healthcare professional."
)

// SuggestionUnmatched is the candidate-level message the keyword strategy returns
// when no disease matched.
const SuggestionUnmatched = "Symptoms do not match known patterns. Please consult a healthcare professional."

// Suggest returns the guidance for a canonical (disease, result) pair, or nil when
// no guidance applies. Values outside the canonical enumerations panic.
func Suggest(disease domain.Disease, result domain.Result) *string {
	if !disease.IsValid() {
		panic(fmt.Sprintf("suggest: disease %q is not canonical", disease))
	}

	switch result {
	case domain.NEGATIVE, domain.UNKNOWN_RESULT, domain.UNCLEAR:
		return nil
	case domain.POSITIVE, domain.POSSIBLE:
	default:
		panic(fmt.Sprintf("suggest: result %q is not canonical", result))
	}

	var msg string
	switch disease {
	case domain.NIPAH:
		msg = SuggestionNipah
	case domain.RABIES:
		msg = SuggestionRabies
	case domain.DENGUE:
		msg = SuggestionDengue
	case domain.ZOONOTIC_UNSPECIFIED, domain.UNKNOWN_DISEASE:
		msg = SuggestionGeneric
	}
	return &msg
}
