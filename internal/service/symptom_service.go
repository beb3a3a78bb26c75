package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zoonotic-report-server/internal/domain"
)

// SymptomService wires both symptom strategies to the report builder.
type SymptomService struct {
	keywords   *KeywordMatcher
	classifier *SymptomClassifier
	builder    *ReportBuilder
	logger     *logrus.Logger
}

// NewSymptomService creates the service. classifier may wrap a nil model.
func NewSymptomService(classifier *SymptomClassifier, builder *ReportBuilder, logger *logrus.Logger) *SymptomService {
	if logger == nil {
		logger = logrus.New()
	}
	return &SymptomService{
		keywords:   NewKeywordMatcher(),
		classifier: classifier,
		builder:    builder,
		logger:     logger,
	}
}

// ClassifierAvailable reports whether the classifier strategy can serve requests.
func (s *SymptomService) ClassifierAvailable() bool {
	return s.classifier.Available()
}

// AnalyzeKeywords runs the keyword strategy and persists the result.
func (s *SymptomService) AnalyzeKeywords(ctx context.Context, symptoms string) (*domain.Report, error) {
	text := strings.ToLower(strings.TrimSpace(symptoms))
	if text == "" {
		return nil, domain.NewValidationError("symptoms", "No symptoms provided", symptoms)
	}

	candidates := s.keywords.Match(text)
	s.logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"top":        candidates[0].Disease,
	}).Info("Keyword symptom analysis completed")

	return s.builder.Save(ctx, s.builder.BuildKeyword(text, candidates))
}

// PredictSymptoms runs the classifier strategy and persists the result. It fails
// with domain.ErrModelUnavailable before touching storage when no model is loaded.
func (s *SymptomService) PredictSymptoms(ctx context.Context, symptoms string) (*domain.SymptomPrediction, error) {
	text := strings.TrimSpace(symptoms)
	if text == "" {
		return nil, domain.NewValidationError("symptoms", "No symptoms provided", symptoms)
	}

	prediction, err := s.classifier.Predict(ctx, text)
	if err != nil {
		return nil, err
	}

	saved, err := s.builder.Save(ctx, s.builder.BuildPrediction(prediction))
	if err != nil {
		return nil, err
	}

	out := prediction.SymptomPrediction
	out.ID = saved.ID
	return &out, nil
}
