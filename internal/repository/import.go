package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/zoonotic-report-server/internal/domain"
)

// DocumentInserter stores an encoded document as-is. Every store in this package
// implements it; upgrade happens when the document is read back.
type DocumentInserter interface {
	InsertDocument(ctx context.Context, doc json.RawMessage) (string, error)
}

// ImportJSON copies a reports.json array into store. Documents that no reader
// version can decode are skipped.
func ImportJSON(ctx context.Context, store DocumentInserter, r io.Reader) (imported int, skipped int, err error) {
	var docs []json.RawMessage
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, doc := range docs {
		if _, err := UpgradeDocument("", doc); err != nil {
			skipped++
			continue
		}
		if _, err := store.InsertDocument(ctx, doc); err != nil {
			return imported, skipped, fmt.Errorf("failed to import document: %w", err)
		}
		imported++
	}
	return imported, skipped, nil
}

// encodeReport renders a report for storage. The id lives outside the document.
func encodeReport(report *domain.Report) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("%w: report is nil", domain.ErrInvalidInput)
	}
	doc := *report
	doc.ID = ""
	if doc.SchemaVersion == 0 {
		doc.SchemaVersion = domain.CurrentSchemaVersion
	}
	data, err := json.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return data, nil
}
