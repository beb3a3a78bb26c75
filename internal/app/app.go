// Package app wires configuration into a running report server. Collaborators are
// built in a fixed order: storage, then the classifier, then the pipelines and the
// HTTP server. A classifier that fails to initialize leaves only the prediction
// endpoint unavailable.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/zoonotic-report-server/internal/api"
	"github.com/zoonotic-report-server/internal/auth"
	"github.com/zoonotic-report-server/internal/config"
	"github.com/zoonotic-report-server/internal/database"
	"github.com/zoonotic-report-server/internal/domain"
	"github.com/zoonotic-report-server/internal/inference"
	"github.com/zoonotic-report-server/internal/ocr"
	"github.com/zoonotic-report-server/internal/repository"
	"github.com/zoonotic-report-server/internal/service"
)

// App holds the constructed collaborators.
type App struct {
	Config     *domain.Config
	Reports    domain.ReportStore
	Users      domain.UserStore
	Classifier domain.Classifier
	Pipeline   *service.UploadPipeline
	Symptoms   *service.SymptomService
	Server     *api.Server

	acquirer service.TextAcquirer
	logger   *logrus.Logger
	closers  []func() error
}

// Option is a functional option for App.
type Option func(*App) error

// WithReportStore sets a custom report store.
func WithReportStore(store domain.ReportStore) Option {
	return func(a *App) error {
		a.Reports = store
		return nil
	}
}

// WithUserStore sets a custom user store.
func WithUserStore(store domain.UserStore) Option {
	return func(a *App) error {
		a.Users = store
		return nil
	}
}

// WithClassifier skips classifier construction from configuration.
func WithClassifier(c domain.Classifier) Option {
	return func(a *App) error {
		a.Classifier = c
		return nil
	}
}

// WithAcquirer replaces the OCR-backed text acquirer.
func WithAcquirer(acq service.TextAcquirer) Option {
	return func(a *App) error {
		a.acquirer = acq
		return nil
	}
}

// New builds every collaborator described by cfg.
func New(ctx context.Context, cfg *domain.Config, logger *logrus.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = logrus.New()
	}
	a := &App{Config: cfg, logger: logger}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if a.Classifier == nil {
		classifier, err := inference.New(ctx, cfg.Classifier, cfg.Cache, service.FeatureVocabulary, logger)
		if err != nil {
			logger.WithError(err).Warn("Symptom classifier unavailable, prediction endpoint disabled")
		} else {
			a.Classifier = classifier
			if c, ok := classifier.(io.Closer); ok {
				a.closers = append(a.closers, c.Close)
			}
		}
	}

	if a.acquirer == nil {
		a.acquirer = ocr.NewExtractor(cfg.OCR, logger)
	}

	builder := service.NewReportBuilder(a.Reports, logger)
	a.Pipeline = service.NewUploadPipeline(a.acquirer, nil, builder, logger)
	a.Symptoms = service.NewSymptomService(
		service.NewSymptomClassifier(a.Classifier, cfg.Classifier.SuggestionFrom, logger),
		builder,
		logger,
	)

	a.Server = api.NewServer(cfg.Server, api.Dependencies{
		Pipeline: a.Pipeline,
		Symptoms: a.Symptoms,
		Reports:  a.Reports,
		Auth:     auth.NewService(a.Users, 0, logger),
	}, logger)

	logger.WithFields(logrus.Fields{
		"storage":    cfg.Storage.Driver,
		"classifier": a.Symptoms.ClassifierAvailable(),
	}).Info("Report server initialized")

	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	cfg := a.Config
	if a.Reports == nil {
		switch cfg.Storage.Driver {
		case config.DRIVER_SQLITE, "":
			store, err := repository.NewSQLiteReportStore(cfg.Storage.SQLitePath, a.logger)
			if err != nil {
				return fmt.Errorf("failed to open report store: %w", err)
			}
			a.Reports = store
			a.closers = append(a.closers, store.Close)
			if a.Users == nil {
				users, err := auth.NewSQLiteUserStoreFromDB(store.DB())
				if err != nil {
					return fmt.Errorf("failed to open user store: %w", err)
				}
				a.Users = users
			}

		case config.DRIVER_POSTGRES:
			if err := database.Migrate(ctx, cfg.Database, cfg.Database.MigrationsPath, a.logger); err != nil {
				return err
			}
			db, err := database.NewConnection(ctx, cfg.Database, a.logger)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			a.closers = append(a.closers, func() error { db.Close(); return nil })
			a.Reports = repository.NewPostgresReportStore(db.Pool, a.logger)
			if a.Users == nil {
				users, err := auth.NewPostgresUserStoreFromURL(database.URL(cfg.Database))
				if err != nil {
					return fmt.Errorf("failed to open user store: %w", err)
				}
				a.Users = users
				a.closers = append(a.closers, users.Close)
			}

		case config.DRIVER_MONGO:
			store, err := repository.NewMongoReportStore(ctx, cfg.Mongo, a.logger)
			if err != nil {
				return fmt.Errorf("failed to open report store: %w", err)
			}
			a.Reports = store
			a.closers = append(a.closers, store.Close)

		default:
			return fmt.Errorf("%w: unknown storage driver %q", domain.ErrInvalidInput, cfg.Storage.Driver)
		}
	}

	// mongo and custom report stores keep accounts in SQLite
	if a.Users == nil {
		users, err := auth.NewSQLiteUserStore(cfg.Storage.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open user store: %w", err)
		}
		a.Users = users
		a.closers = append(a.closers, users.Close)
	}
	return nil
}

// Start serves HTTP until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	return a.Server.Start(ctx)
}

// Close releases collaborators in reverse construction order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
