// Package api exposes the report pipeline and symptom analysis over a JSON HTTP API
// consumed by the single-page client.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/zoonotic-report-server/internal/domain"
	"github.com/zoonotic-report-server/internal/middleware"
	"github.com/zoonotic-report-server/internal/ocr"
)

// Version is reported by /health.
const Version = "1.0.0"

// UploadProcessor turns an uploaded document into a persisted Report.
type UploadProcessor interface {
	Process(ctx context.Context, doc ocr.Document) (*domain.Report, error)
}

// SymptomAnalyzer serves both symptom strategies.
type SymptomAnalyzer interface {
	AnalyzeKeywords(ctx context.Context, symptoms string) (*domain.Report, error)
	PredictSymptoms(ctx context.Context, symptoms string) (*domain.SymptomPrediction, error)
	ClassifierAvailable() bool
}

// Dependencies are the collaborators the handlers call into.
type Dependencies struct {
	Pipeline UploadProcessor
	Symptoms SymptomAnalyzer
	Reports  domain.ReportStore
	Auth     domain.Authenticator
}

// Server represents the HTTP server
type Server struct {
	cfg    domain.ServerConfig
	deps   Dependencies
	router *gin.Engine
	server *http.Server
	logger *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(cfg domain.ServerConfig, deps Dependencies, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}

	router := gin.New()
	router.MaxMultipartMemory = 8 << 20

	router.Use(middleware.RequestID())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: router,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	s.router.POST("/upload", s.handleUpload)
	s.router.POST("/symptoms", s.handleSymptoms)
	s.router.POST("/predict_symptoms", s.handlePredictSymptoms)

	s.router.GET("/reports", s.handleListReports)
	s.router.GET("/reports/export", s.handleExportReports)
	s.router.DELETE("/clear_reports", s.handleClearReports)

	s.router.POST("/register", s.handleRegister)
	s.router.POST("/login", s.handleLogin)
}
