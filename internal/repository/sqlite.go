package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/zoonotic-report-server/internal/domain"
)

// SQLiteReportStore keeps reports in a single SQLite file. Rows are listed in
// insertion order.
type SQLiteReportStore struct {
	db     *sql.DB
	dbPath string
	log    *logrus.Logger
}

// NewSQLiteReportStore opens (or creates) the database at dbPath.
func NewSQLiteReportStore(dbPath string, logger *logrus.Logger) (*SQLiteReportStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := createReportSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if logger == nil {
		logger = logrus.New()
	}
	logger.WithField("path", dbPath).Info("SQLite report store opened")

	return &SQLiteReportStore{db: db, dbPath: dbPath, log: logger}, nil
}

func createReportSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL DEFAULT '',
		schema_version INTEGER NOT NULL DEFAULT 0,
		document TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_reports_source ON reports(source);
	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Insert implements domain.ReportStore.
func (s *SQLiteReportStore) Insert(ctx context.Context, report *domain.Report) (string, error) {
	doc, err := encodeReport(report)
	if err != nil {
		return "", err
	}
	return s.InsertDocument(ctx, doc)
}

// InsertDocument stores doc without re-encoding it.
func (s *SQLiteReportStore) InsertDocument(ctx context.Context, doc json.RawMessage) (string, error) {
	version, err := DocumentVersion(doc)
	if err != nil {
		return "", err
	}
	var head struct {
		Source string `json:"source"`
	}
	_ = json.Unmarshal(doc, &head)

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (id, source, schema_version, document, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, head.Source, version, string(doc), time.Now().UTC())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"report_id": id,
			"error":     err,
		}).Error("Failed to insert report")
		return "", fmt.Errorf("failed to insert report: %w", err)
	}
	return id, nil
}

// ListAll implements domain.ReportStore.
func (s *SQLiteReportStore) ListAll(ctx context.Context) ([]*domain.Report, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, document FROM reports ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*domain.Report, 0)
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if report, ok := decodeListed(s.log, id, []byte(doc)); ok {
			reports = append(reports, report)
		}
	}
	return reports, rows.Err()
}

// DeleteAll implements domain.ReportStore.
func (s *SQLiteReportStore) DeleteAll(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM reports")
	if err != nil {
		return fmt.Errorf("failed to delete reports: %w", err)
	}
	n, _ := res.RowsAffected()
	s.log.WithField("deleted", n).Info("Reports cleared")
	return nil
}

// Count returns the number of stored reports.
func (s *SQLiteReportStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reports").Scan(&count)
	return count, err
}

// Health implements domain.ReportStore.
func (s *SQLiteReportStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the handle so the user store can share the file in lite mode.
func (s *SQLiteReportStore) DB() *sql.DB {
	return s.db
}

// Close implements domain.ReportStore.
func (s *SQLiteReportStore) Close() error {
	return s.db.Close()
}
