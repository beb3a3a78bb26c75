package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zoonotic-report-server/internal/domain"
)

// DefaultSuggestionThreshold is the confidence (percent) a prediction must exceed
// before guidance is attached.
const DefaultSuggestionThreshold = 50.0

// FeatureVocabulary is the classifier's input layout. The order must match the
// column order the model was trained on.
var FeatureVocabulary = []string{
	"fever",
	"headache",
	"rash",
	"muscle pain",
	"joint pain",
	"vomiting",
	"nausea",
	"bleeding",
	"fatigue",
	"bite",
	"scratch",
	"saliva",
	"hydrophobia",
	"animal contact",
	"agitation",
	"paralysis",
	"cough",
	"respiratory distress",
	"encephalitis",
	"seizure",
	"confusion",
	"drowsiness",
}

// symptomSynonyms maps free-text variants, single words or bigrams, onto
// vocabulary features.
var symptomSynonyms = map[string]string{
	"bodyache":             "muscle pain",
	"body ache":            "muscle pain",
	"body pain":            "muscle pain",
	"myalgia":              "muscle pain",
	"arthralgia":           "joint pain",
	"vomit":                "vomiting",
	"puking":               "vomiting",
	"throwing up":          "vomiting",
	"nauseous":             "nausea",
	"bleed":                "bleeding",
	"tired":                "fatigue",
	"tiredness":            "fatigue",
	"weakness":             "fatigue",
	"bitten":               "bite",
	"bites":                "bite",
	"dog":                  "animal contact",
	"bat":                  "animal contact",
	"pig":                  "animal contact",
	"scratched":            "scratch",
	"drooling":             "saliva",
	"salivation":           "saliva",
	"agitated":             "agitation",
	"paralysed":            "paralysis",
	"paralyzed":            "paralysis",
	"coughing":             "cough",
	"breathlessness":       "respiratory distress",
	"breathing difficulty": "respiratory distress",
	"seizures":             "seizure",
	"convulsions":          "seizure",
	"fits":                 "seizure",
	"confused":             "confusion",
	"disoriented":          "confusion",
	"sleepy":               "drowsiness",
	"drowsy":               "drowsiness",
	"pyrexia":              "fever",
}

// noDiseaseLabels are classifier labels that mean no zoonotic disease was predicted.
var noDiseaseLabels = map[string]bool{
	"none":     true,
	"healthy":  true,
	"negative": true,
	"normal":   true,
}

var featureIndex = func() map[string]int {
	idx := make(map[string]int, len(FeatureVocabulary))
	for i, f := range FeatureVocabulary {
		idx[f] = i
	}
	return idx
}()

// SymptomClassifier is the classifier-backed symptom strategy. A nil classifier
// makes every prediction fail with domain.ErrModelUnavailable.
type SymptomClassifier struct {
	classifier domain.Classifier
	threshold  float64
	logger     *logrus.Logger
}

// NewSymptomClassifier creates the strategy. threshold <= 0 uses
// DefaultSuggestionThreshold.
func NewSymptomClassifier(classifier domain.Classifier, threshold float64, logger *logrus.Logger) *SymptomClassifier {
	if threshold <= 0 {
		threshold = DefaultSuggestionThreshold
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &SymptomClassifier{
		classifier: classifier,
		threshold:  threshold,
		logger:     logger,
	}
}

// Available reports whether a classifier is loaded.
func (s *SymptomClassifier) Available() bool {
	return s != nil && s.classifier != nil
}

// Prediction bundles the classifier output with the canonical disease/result it
// implies for report assembly.
type Prediction struct {
	domain.SymptomPrediction
	Disease domain.Disease
	Result  domain.Result
}

// Predict runs the classifier strategy over free-text symptoms.
func (s *SymptomClassifier) Predict(ctx context.Context, text string) (*Prediction, error) {
	if !s.Available() {
		return nil, domain.ErrModelUnavailable
	}

	features, matched := BuildFeatureVector(text)
	classification, err := s.classifier.Classify(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("classifying symptoms: %w", err)
	}

	confidence := roundPercent(classification.TopProbability())
	disease := domain.ParseDisease(classification.Label)
	result := domain.UNCLEAR
	switch {
	case noDiseaseLabels[strings.ToLower(strings.TrimSpace(classification.Label))]:
		result = domain.NEGATIVE
	case confidence > s.threshold:
		result = domain.POSSIBLE
	}

	probabilities := make(map[string]float64, len(classification.Probabilities))
	for label, p := range classification.Probabilities {
		probabilities[label] = roundPercent(p)
	}

	s.logger.WithFields(logrus.Fields{
		"matched_features": matched,
		"prediction":       classification.Label,
		"confidence":       confidence,
	}).Info("Symptom prediction completed")

	return &Prediction{
		SymptomPrediction: domain.SymptomPrediction{
			InputSymptoms:   text,
			MatchedFeatures: matched,
			Prediction:      classification.Label,
			Confidence:      confidence,
			Probabilities:   probabilities,
			Suggestion:      Suggest(disease, result),
		},
		Disease: disease,
		Result:  result,
	}, nil
}

// BuildFeatureVector normalizes symptom text through the synonym table and returns
// the fixed-order feature vector plus the matched features in vocabulary order.
func BuildFeatureVector(text string) ([]bool, []string) {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		switch r {
		case ',', ';', '.', '/', '\n', '\t', ' ', '\r':
			return true
		}
		return false
	})

	vec := make([]bool, len(FeatureVocabulary))
	for i := 0; i < len(tokens); i++ {
		if i+1 < len(tokens) {
			if idx, ok := lookupFeature(tokens[i] + " " + tokens[i+1]); ok {
				vec[idx] = true
				i++
				continue
			}
		}
		if idx, ok := lookupFeature(tokens[i]); ok {
			vec[idx] = true
		}
	}

	matched := make([]string, 0)
	for i, set := range vec {
		if set {
			matched = append(matched, FeatureVocabulary[i])
		}
	}
	return vec, matched
}

func lookupFeature(term string) (int, bool) {
	if canonical, ok := symptomSynonyms[term]; ok {
		term = canonical
	}
	idx, ok := featureIndex[term]
	return idx, ok
}

func roundPercent(p float64) float64 {
	return math.Round(p*100*100) / 100
}
