package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zoonotic-report-server/internal/domain"
	"github.com/zoonotic-report-server/internal/ocr"
	"github.com/zoonotic-report-server/pkg/labtext"
)

// TextAcquirer produces text from an uploaded document.
type TextAcquirer interface {
	Acquire(ctx context.Context, doc ocr.Document) (*ocr.Result, error)
}

// UploadPipeline runs Acquire -> Extract -> Normalize -> Build -> Save for one
// document. Any acquisition or storage error aborts the run and nothing is saved.
type UploadPipeline struct {
	acquirer  TextAcquirer
	extractor *labtext.Extractor
	builder   *ReportBuilder
	logger    *logrus.Logger
}

// NewUploadPipeline creates the pipeline. A nil extractor uses the default rules.
func NewUploadPipeline(acquirer TextAcquirer, extractor *labtext.Extractor, builder *ReportBuilder, logger *logrus.Logger) *UploadPipeline {
	if extractor == nil {
		extractor = labtext.NewExtractor(nil)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &UploadPipeline{
		acquirer:  acquirer,
		extractor: extractor,
		builder:   builder,
		logger:    logger,
	}
}

// Analyze acquires and extracts a document without persisting it.
func (p *UploadPipeline) Analyze(ctx context.Context, doc ocr.Document) (*domain.Report, error) {
	startTime := time.Now()

	// Step 1: acquire text
	acquired, err := p.acquirer.Acquire(ctx, doc)
	if err != nil {
		return nil, err
	}

	// Step 2: extract raw fields; never fails
	fields := p.extractor.Extract(acquired.Text)

	// Step 3: canonicalize
	normalized := NormalizeFields(fields)

	p.logger.WithFields(logrus.Fields{
		"document":      doc.Name,
		"disease_token": fields.DiseaseToken,
		"result_token":  fields.ResultToken,
		"result_source": fields.ResultSource,
		"biomarkers":    fields.Biomarkers.Len(),
		"disease":       normalized.Disease,
		"result":        normalized.Result,
		"duration_ms":   time.Since(startTime).Milliseconds(),
	}).Info("Document fields extracted")

	// Step 4: assemble
	return p.builder.BuildUpload(acquired.Text, normalized, acquired.Metadata(doc.Name)), nil
}

// Process analyzes the document and saves the resulting Report.
func (p *UploadPipeline) Process(ctx context.Context, doc ocr.Document) (*domain.Report, error) {
	report, err := p.Analyze(ctx, doc)
	if err != nil {
		return nil, err
	}
	return p.builder.Save(ctx, report)
}
