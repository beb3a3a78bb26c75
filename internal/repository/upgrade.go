// Package repository persists Reports. Every backend stores the report as a JSON
// document and returns it through UpgradeDocument, so records written by older
// versions of the service stay readable.
package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zoonotic-report-server/internal/domain"
)

// Document shape versions. Version 0 is the flat reports.json record with a scalar
// ct_value string. Version 1 added the ct_values mapping and keyword symptom
// documents. Version 2 is domain.Report.
const (
	SCHEMA_V0 = 0
	SCHEMA_V1 = 1
	SCHEMA_V2 = domain.CurrentSchemaVersion
)

const legacyMLSource = "ml-symptoms"

// storedDocument is the union of every historical document shape.
type storedDocument struct {
	ID            string `json:"id"`
	SchemaVersion *int   `json:"schema_version"`
	Source        string `json:"source"`

	Disease    string          `json:"disease"`
	Result     string          `json:"result"`
	CtValue    json.RawMessage `json:"ct_value"`
	CtValues   json.RawMessage `json:"ct_values"`
	Suggestion *string         `json:"suggestion"`
	RawText    string          `json:"raw_text"`

	Symptoms         string                    `json:"symptoms"`
	PossibleDiseases []domain.KeywordCandidate `json:"possible_diseases"`

	InputSymptoms   string   `json:"input_symptoms"`
	MatchedFeatures []string `json:"matched_features"`
	Prediction      string   `json:"prediction"`
	Confidence      *float64 `json:"confidence"`

	CreatedAt *time.Time `json:"created_at"`
}

// UpgradeDocument decodes a stored document of any version into the current Report
// shape. id, when non-empty, overrides any id embedded in the document.
func UpgradeDocument(id string, raw []byte) (*domain.Report, error) {
	report, _, err := upgradeDocument(id, raw)
	return report, err
}

// upgradeDocument is UpgradeDocument that also returns the legacy Ct entries it
// had to drop.
func upgradeDocument(id string, raw []byte) (*domain.Report, []string, error) {
	var doc storedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("decoding stored report: %w", err)
	}

	var (
		report  *domain.Report
		dropped []string
	)
	if doc.SchemaVersion != nil && *doc.SchemaVersion >= SCHEMA_V2 {
		report = &domain.Report{}
		if err := json.Unmarshal(raw, report); err != nil {
			return nil, nil, fmt.Errorf("decoding v%d report: %w", *doc.SchemaVersion, err)
		}
		if report.CtValue == "" {
			report.CtValue = domain.NotAvailable
		}
	} else {
		var err error
		report, dropped, err = upgradeLegacy(&doc)
		if err != nil {
			return nil, nil, err
		}
	}

	if id != "" {
		report.ID = id
	}
	return report, dropped, nil
}

// decodeListed upgrades one document read by a ListAll scan. A document that
// cannot be decoded is logged and skipped so the rest of the collection is still
// returned.
func decodeListed(logger *logrus.Logger, id string, raw []byte) (*domain.Report, bool) {
	report, dropped, err := upgradeDocument(id, raw)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"report_id": id,
			"error":     err,
		}).Warn("Skipping unreadable report")
		return nil, false
	}
	if len(dropped) > 0 {
		logger.WithFields(logrus.Fields{
			"report_id": id,
			"genes":     dropped,
		}).Warn("Dropped unparseable legacy Ct values")
	}
	return report, true
}

// DocumentVersion reports the shape version of a stored document.
func DocumentVersion(raw []byte) (int, error) {
	var doc storedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, fmt.Errorf("decoding stored report: %w", err)
	}
	return doc.version(), nil
}

func (d *storedDocument) version() int {
	if d.SchemaVersion != nil {
		return *d.SchemaVersion
	}
	if len(d.CtValues) > 0 || d.PossibleDiseases != nil || d.Prediction != "" {
		return SCHEMA_V1
	}
	return SCHEMA_V0
}

func (d *storedDocument) source() domain.Source {
	if strings.EqualFold(strings.TrimSpace(d.Source), legacyMLSource) {
		return domain.SOURCE_SYMPTOM_ML
	}
	if s, err := domain.ParseSource(d.Source); err == nil {
		return s
	}
	switch {
	case d.Prediction != "":
		return domain.SOURCE_SYMPTOM_ML
	case d.PossibleDiseases != nil || d.Symptoms != "":
		return domain.SOURCE_SYMPTOM_KEYWORD
	default:
		return domain.SOURCE_UPLOAD
	}
}

func upgradeLegacy(d *storedDocument) (*domain.Report, []string, error) {
	r := &domain.Report{
		ID:            d.ID,
		SchemaVersion: domain.CurrentSchemaVersion,
		Source:        d.source(),
		CtValue:       domain.NotAvailable,
		Suggestion:    d.Suggestion,
		RawText:       d.RawText,
	}
	if d.CreatedAt != nil {
		r.CreatedAt = *d.CreatedAt
	}

	var dropped []string
	switch r.Source {
	case domain.SOURCE_SYMPTOM_KEYWORD:
		r.Symptoms = d.Symptoms
		r.PossibleDiseases = d.PossibleDiseases
		if r.RawText == "" {
			r.RawText = d.Symptoms
		}
		r.Disease, r.Result = domain.UNKNOWN_DISEASE, domain.UNCLEAR
		if len(d.PossibleDiseases) > 0 {
			head := d.PossibleDiseases[0]
			r.Disease, r.Result = head.Disease, head.Result
			if r.Suggestion == nil && head.Result.IsPositiveLike() {
				r.Suggestion = head.Suggestion
			}
		}

	case domain.SOURCE_SYMPTOM_ML:
		r.Symptoms = d.InputSymptoms
		if r.Symptoms == "" {
			r.Symptoms = d.Symptoms
		}
		if r.RawText == "" {
			r.RawText = r.Symptoms
		}
		r.MatchedFeatures = d.MatchedFeatures
		r.Prediction = d.Prediction
		r.Confidence = d.Confidence
		r.Disease = domain.ParseDisease(d.Prediction)
		switch {
		case d.Result != "":
			r.Result = domain.ParseResult(d.Result)
		case d.Suggestion != nil:
			r.Result = domain.POSSIBLE
		default:
			r.Result = domain.UNCLEAR
		}

	default:
		r.Disease = domain.ParseDisease(d.Disease)
		r.Result = domain.ParseResult(d.Result)
		var err error
		r.Biomarkers, dropped, err = legacyCtValues(d.CtValues)
		if err != nil {
			return nil, nil, fmt.Errorf("decoding legacy ct_values: %w", err)
		}
		scalar, err := rawScalar(d.CtValue)
		if err != nil {
			return nil, nil, fmt.Errorf("decoding legacy ct_value: %w", err)
		}
		if joined, ok := parseJoined(scalar); ok {
			if r.Biomarkers.Len() == 0 {
				r.Biomarkers = joined
			}
		} else if scalar != "" {
			r.CtValue = scalar
		}
	}

	// Older writers attached monitoring advice to negative and unclear results.
	if !r.Result.IsPositiveLike() {
		r.Suggestion = nil
	}
	return r, dropped, nil
}

// legacyCtValues reads the ct_values mapping. Entries whose value is not a Ct
// number are dropped and their genes returned; a trailing period left by the old
// "[\d.]+" capture is tolerated.
func legacyCtValues(raw json.RawMessage) (domain.Biomarkers, []string, error) {
	var out domain.Biomarkers
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return out, nil, err
		}
		if s = strings.TrimSpace(s); s == "" || strings.EqualFold(s, domain.NotAvailable) {
			return out, nil, nil
		}
		return out, []string{s}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return out, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return out, nil, fmt.Errorf("expected object, got %v", tok)
	}

	var dropped []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return out, nil, err
		}
		gene, _ := keyTok.(string)
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return out, nil, err
		}
		var ct float64
		var ok bool
		switch v := value.(type) {
		case json.Number:
			ct, ok = parseLegacyCt(v.String())
		case string:
			ct, ok = parseLegacyCt(v)
		}
		if !ok {
			dropped = append(dropped, gene)
			continue
		}
		out.Set(gene, ct)
	}
	return out, dropped, nil
}

func parseLegacyCt(s string) (float64, bool) {
	s = strings.TrimRight(strings.TrimSpace(s), ".")
	if s == "" {
		return 0, false
	}
	ct, err := strconv.ParseFloat(s, 64)
	return ct, err == nil
}

// rawScalar reads ct_value, which older writers stored as either a string or a number.
func rawScalar(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		s = strings.TrimSpace(s)
		if strings.EqualFold(s, domain.NotAvailable) {
			return "", nil
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// parseJoined reads the "N gene: 23.8, E gene: 25" form written alongside ct_values.
func parseJoined(s string) (domain.Biomarkers, bool) {
	var out domain.Biomarkers
	if !strings.Contains(s, ":") {
		return out, false
	}
	for _, part := range strings.Split(s, ",") {
		gene, value, ok := strings.Cut(part, ":")
		if !ok {
			return domain.Biomarkers{}, false
		}
		ct, ok := parseLegacyCt(value)
		if !ok {
			return domain.Biomarkers{}, false
		}
		out.Set(strings.TrimSpace(gene), ct)
	}
	return out, out.Len() > 0
}
