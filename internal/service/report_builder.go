package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zoonotic-report-server/internal/domain"
)

// ReportBuilder is the only component that constructs Reports. Build* methods are
// pure assembly; Save hands a finished Report to storage.
type ReportBuilder struct {
	store  domain.ReportStore
	now    func() time.Time
	logger *logrus.Logger
}

// NewReportBuilder creates a builder writing to store.
func NewReportBuilder(store domain.ReportStore, logger *logrus.Logger) *ReportBuilder {
	if logger == nil {
		logger = logrus.New()
	}
	return &ReportBuilder{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// WithClock replaces the timestamp source.
func (b *ReportBuilder) WithClock(now func() time.Time) *ReportBuilder {
	b.now = now
	return b
}

// BuildUpload assembles a Report from normalized document fields.
func (b *ReportBuilder) BuildUpload(rawText string, fields NormalizedFields, acquisition *domain.Acquisition) *domain.Report {
	r := b.base(domain.SOURCE_UPLOAD, fields.Disease, fields.Result)
	r.Biomarkers = fields.Biomarkers
	r.CtValue = fields.CtValue
	r.RawText = rawText
	r.Acquisition = acquisition
	return r
}

// BuildKeyword assembles a Report from keyword candidates. The headline disease is
// the first candidate; the zero-match consult message stays on the candidate.
func (b *ReportBuilder) BuildKeyword(symptoms string, candidates []domain.KeywordCandidate) *domain.Report {
	disease, result := domain.UNKNOWN_DISEASE, domain.UNCLEAR
	if len(candidates) > 0 {
		disease, result = candidates[0].Disease, candidates[0].Result
	}
	r := b.base(domain.SOURCE_SYMPTOM_KEYWORD, disease, result)
	r.RawText = symptoms
	r.Symptoms = symptoms
	r.PossibleDiseases = candidates
	return r
}

// BuildPrediction assembles a Report from a classifier prediction.
func (b *ReportBuilder) BuildPrediction(p *Prediction) *domain.Report {
	r := b.base(domain.SOURCE_SYMPTOM_ML, p.Disease, p.Result)
	r.RawText = p.InputSymptoms
	r.Symptoms = p.InputSymptoms
	r.MatchedFeatures = append([]string(nil), p.MatchedFeatures...)
	r.Prediction = p.Prediction
	confidence := p.Confidence
	r.Confidence = &confidence
	return r
}

func (b *ReportBuilder) base(source domain.Source, disease domain.Disease, result domain.Result) *domain.Report {
	return &domain.Report{
		SchemaVersion: domain.CurrentSchemaVersion,
		Source:        source,
		Disease:       disease,
		Result:        result,
		CtValue:       domain.NotAvailable,
		Suggestion:    Suggest(disease, result),
		CreatedAt:     b.now(),
	}
}

// Save inserts report and returns a copy carrying the storage-assigned id.
func (b *ReportBuilder) Save(ctx context.Context, report *domain.Report) (*domain.Report, error) {
	id, err := b.store.Insert(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("failed to save report: %w: %w", domain.ErrStorageFailure, err)
	}

	saved := report.WithID(id)
	b.logger.WithFields(logrus.Fields{
		"report_id": id,
		"source":    saved.Source,
		"disease":   saved.Disease,
		"result":    saved.Result,
	}).Info("Report saved")
	return &saved, nil
}
