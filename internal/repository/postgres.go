package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/zoonotic-report-server/internal/domain"
)

// PostgresReportStore keeps reports as JSONB documents. The reports table is
// created by the migrations in migrations/.
type PostgresReportStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresReportStore creates a store on an open pool.
func NewPostgresReportStore(db *pgxpool.Pool, logger *logrus.Logger) *PostgresReportStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &PostgresReportStore{
		db:  db,
		log: logger,
	}
}

// Insert implements domain.ReportStore.
func (r *PostgresReportStore) Insert(ctx context.Context, report *domain.Report) (string, error) {
	doc, err := encodeReport(report)
	if err != nil {
		return "", err
	}
	return r.InsertDocument(ctx, doc)
}

// InsertDocument stores doc without re-encoding it.
func (r *PostgresReportStore) InsertDocument(ctx context.Context, doc json.RawMessage) (string, error) {
	version, err := DocumentVersion(doc)
	if err != nil {
		return "", err
	}
	var head struct {
		Source string `json:"source"`
	}
	_ = json.Unmarshal(doc, &head)

	id := uuid.New()
	query := `
		INSERT INTO reports (id, source, schema_version, document)
		VALUES ($1, $2, $3, $4::jsonb)`

	if _, err := r.db.Exec(ctx, query, id, head.Source, version, string(doc)); err != nil {
		r.log.WithFields(logrus.Fields{
			"report_id": id,
			"error":     err,
		}).Error("Failed to insert report")
		return "", fmt.Errorf("inserting report: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"report_id":      id,
		"schema_version": version,
	}).Debug("Report inserted")
	return id.String(), nil
}

// ListAll implements domain.ReportStore.
func (r *PostgresReportStore) ListAll(ctx context.Context) ([]*domain.Report, error) {
	query := `
		SELECT id::text, document::text
		FROM reports
		ORDER BY seq`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.log.WithError(err).Error("Failed to list reports")
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*domain.Report, 0)
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		if report, ok := decodeListed(r.log, id, []byte(doc)); ok {
			reports = append(reports, report)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return reports, nil
}

// DeleteAll implements domain.ReportStore.
func (r *PostgresReportStore) DeleteAll(ctx context.Context) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM reports")
	if err != nil {
		return fmt.Errorf("deleting reports: %w", err)
	}
	r.log.WithField("deleted", tag.RowsAffected()).Info("Reports cleared")
	return nil
}

// CountBySource returns the number of reports per provenance tag.
func (r *PostgresReportStore) CountBySource(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, "SELECT source, COUNT(*) FROM reports GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("counting reports: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var source string
		var n int64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[source] = n
	}
	return counts, rows.Err()
}

// Health implements domain.ReportStore.
func (r *PostgresReportStore) Health(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close implements domain.ReportStore. The pool is owned by the caller.
func (r *PostgresReportStore) Close() error {
	return nil
}
