package domain

import (
	"time"
)

// CurrentSchemaVersion is the document shape written by this service. Older shapes
// are upgraded on read by the repository layer.
const CurrentSchemaVersion = 2

// Report is the canonical persisted record produced by every pipeline path.
// A Report is never mutated after it is handed to storage.
type Report struct {
	ID            string     `json:"id"`
	SchemaVersion int        `json:"schema_version"`
	Source        Source     `json:"source"`
	Disease       Disease    `json:"disease"`
	Result        Result     `json:"result"`
	Biomarkers    Biomarkers `json:"biomarkers"`
	CtValue       string     `json:"ct_value"`
	Suggestion    *string    `json:"suggestion"`
	RawText       string     `json:"raw_text"`
	CreatedAt     time.Time  `json:"created_at"`

	// upload path
	Acquisition *Acquisition `json:"acquisition,omitempty"`

	// symptom paths
	Symptoms         string             `json:"symptoms,omitempty"`
	PossibleDiseases []KeywordCandidate `json:"possible_diseases,omitempty"`
	MatchedFeatures  []string           `json:"matched_symptoms,omitempty"`
	Prediction       string             `json:"prediction,omitempty"`
	Confidence       *float64           `json:"confidence,omitempty"`
}

// WithID returns a copy of the report carrying the storage-assigned id.
func (r Report) WithID(id string) Report {
	r.ID = id
	return r
}

// HasSuggestion reports whether clinical guidance is attached.
func (r *Report) HasSuggestion() bool {
	return r.Suggestion != nil
}

// Acquisition describes how the report text was obtained from the uploaded document.
type Acquisition struct {
	Method      string   `json:"method"`
	Pages       int      `json:"pages"`
	PageMethods []string `json:"page_methods,omitempty"`
	Filename    string   `json:"filename,omitempty"`
}

// KeywordCandidate is one disease suggested by the keyword symptom strategy.
type KeywordCandidate struct {
	Disease         Disease  `json:"disease"`
	MatchedSymptoms []string `json:"matched_symptoms"`
	Count           int      `json:"count"`
	Result          Result   `json:"result"`
	Suggestion      *string  `json:"suggestion"`
}

// SymptomPrediction is the classifier strategy's output.
type SymptomPrediction struct {
	ID              string             `json:"id,omitempty"`
	InputSymptoms   string             `json:"input_symptoms"`
	MatchedFeatures []string           `json:"matched_features"`
	Prediction      string             `json:"prediction"`
	Confidence      float64            `json:"confidence"`
	Probabilities   map[string]float64 `json:"probabilities,omitempty"`
	Suggestion      *string            `json:"suggestion"`
}

// Classification is what a Classifier returns for one feature vector: the top label
// and the probability distribution over every label it knows.
type Classification struct {
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// TopProbability returns the probability attached to Label.
func (c *Classification) TopProbability() float64 {
	if c == nil {
		return 0
	}
	return c.Probabilities[c.Label]
}

// User is an account known to the authentication collaborator.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
