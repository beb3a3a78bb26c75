package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"

	"github.com/zoonotic-report-server/internal/domain"
)

// DefaultMigrationsPath is used when Migrate is called without a directory.
const DefaultMigrationsPath = "migrations"

// Migrate brings the reports schema up to date using the SQL files in
// migrationsPath. An already current schema is not an error.
func Migrate(ctx context.Context, cfg domain.DatabaseConfig, migrationsPath string, logger *logrus.Logger) error {
	if migrationsPath == "" {
		migrationsPath = DefaultMigrationsPath
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := migrate.New("file://"+migrationsPath, URL(cfg))
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.WithFields(logrus.Fields{
				"source_error":   srcErr,
				"database_error": dbErr,
			}).Warn("Failed to close migration instance")
		}
	}()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.WithField("path", migrationsPath).Debug("Reports schema already current")
		return nil
	case err != nil:
		return fmt.Errorf("applying migrations from %s: %w", migrationsPath, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		logger.WithError(err).Warn("Could not read schema version after migrating")
		return nil
	}
	logger.WithFields(logrus.Fields{
		"version": version,
		"dirty":   dirty,
	}).Info("Reports schema migrated")
	return nil
}
