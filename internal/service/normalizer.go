package service

import (
	"github.com/zoonotic-report-server/internal/domain"
	"github.com/zoonotic-report-server/pkg/labtext"
)

// NormalizedFields is the canonical form of one extraction.
type NormalizedFields struct {
	Disease    domain.Disease
	Result     domain.Result
	Biomarkers domain.Biomarkers
	CtValue    string
}

// Normalize maps raw disease and result tokens into the canonical vocabularies.
// It is total and side-effect free.
func Normalize(diseaseToken, resultToken string) (domain.Disease, domain.Result) {
	return domain.ParseDisease(diseaseToken), domain.ParseResult(resultToken)
}

// NormalizeFields applies Normalize to extractor output and carries the biomarker
// readings through unchanged.
func NormalizeFields(fields labtext.Fields) NormalizedFields {
	disease, result := Normalize(fields.DiseaseToken, fields.ResultToken)
	ct := fields.CtValue
	if ct == "" {
		ct = domain.NotAvailable
	}
	return NormalizedFields{
		Disease:    disease,
		Result:     result,
		Biomarkers: fields.Biomarkers,
		CtValue:    ct,
	}
}
