package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/zoonotic-report-server/internal/domain"
	"github.com/zoonotic-report-server/internal/export"
	"github.com/zoonotic-report-server/internal/ocr"
)

// SymptomsRequest is the body of /symptoms and /predict_symptoms.
type SymptomsRequest struct {
	Symptoms string `json:"symptoms"`
}

// CredentialsRequest is the body of /register and /login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// KeywordResponse is returned by /symptoms.
type KeywordResponse struct {
	ID               string                    `json:"id"`
	Symptoms         string                    `json:"symptoms"`
	PossibleDiseases []domain.KeywordCandidate `json:"possible_diseases"`
}

// StatusResponse is returned by the mutating endpoints that carry no payload.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{
		Status:     "healthy",
		Version:    Version,
		Timestamp:  time.Now().UTC(),
		Components: map[string]string{},
	}
	status := http.StatusOK

	if s.deps.Reports == nil {
		resp.Components["storage"] = "unconfigured"
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	} else if err := s.deps.Reports.Health(c.Request.Context()); err != nil {
		s.logger.WithError(err).Warn("Storage health check failed")
		resp.Components["storage"] = "unhealthy"
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	} else {
		resp.Components["storage"] = "healthy"
	}

	if s.deps.Symptoms != nil && s.deps.Symptoms.ClassifierAvailable() {
		resp.Components["classifier"] = "available"
	} else {
		resp.Components["classifier"] = "unavailable"
	}

	c.JSON(status, resp)
}

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.respondInvalid(c, "file", "File too large")
			return
		}
		s.respondInvalid(c, "file", "No file uploaded")
		return
	}
	if strings.TrimSpace(fileHeader.Filename) == "" {
		s.respondInvalid(c, "file", "No file selected")
		return
	}

	filename := filepath.Base(fileHeader.Filename)
	if !ocr.IsAllowed(filename) {
		s.respondInvalid(c, "file", "Invalid file type")
		return
	}

	tmp, err := os.CreateTemp(s.cfg.UploadDir, "upload-*"+strings.ToLower(filepath.Ext(filename)))
	if err != nil {
		s.respondError(c, fmt.Errorf("failed to create upload file: %w", err))
		return
	}
	path := tmp.Name()
	tmp.Close()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.WithError(err).WithField("path", path).Warn("Failed to remove upload")
		}
	}()

	if err := c.SaveUploadedFile(fileHeader, path); err != nil {
		s.respondError(c, fmt.Errorf("failed to save upload: %w", err))
		return
	}

	report, err := s.deps.Pipeline.Process(c.Request.Context(), ocr.Document{Path: path, Name: filename})
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"filename":  filename,
		"disease":   report.Disease,
		"result":    report.Result,
	}).Info("Upload processed")

	c.JSON(http.StatusOK, report)
}

func (s *Server) handleSymptoms(c *gin.Context) {
	var req SymptomsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondInvalid(c, "body", "Invalid JSON body")
		return
	}

	report, err := s.deps.Symptoms.AnalyzeKeywords(c.Request.Context(), req.Symptoms)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, KeywordResponse{
		ID:               report.ID,
		Symptoms:         report.Symptoms,
		PossibleDiseases: report.PossibleDiseases,
	})
}

func (s *Server) handlePredictSymptoms(c *gin.Context) {
	var req SymptomsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondInvalid(c, "body", "Invalid JSON body")
		return
	}

	prediction, err := s.deps.Symptoms.PredictSymptoms(c.Request.Context(), req.Symptoms)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, prediction)
}

func (s *Server) handleListReports(c *gin.Context) {
	reports, err := s.deps.Reports.ListAll(c.Request.Context())
	if err != nil {
		s.respondError(c, storageError("list reports", err))
		return
	}
	if reports == nil {
		reports = []*domain.Report{}
	}
	c.JSON(http.StatusOK, reports)
}

func (s *Server) handleExportReports(c *gin.Context) {
	reports, err := s.deps.Reports.ListAll(c.Request.Context())
	if err != nil {
		s.respondError(c, storageError("list reports", err))
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, reports); err != nil {
		s.respondError(c, fmt.Errorf("failed to build workbook: %w", err))
		return
	}

	name := fmt.Sprintf("reports-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

func (s *Server) handleClearReports(c *gin.Context) {
	if err := s.deps.Reports.DeleteAll(c.Request.Context()); err != nil {
		s.respondError(c, storageError("clear reports", err))
		return
	}
	s.logger.Info("All reports cleared")
	c.JSON(http.StatusOK, StatusResponse{Success: true, Message: "All reports cleared"})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondInvalid(c, "body", "Invalid JSON body")
		return
	}

	if err := s.deps.Auth.Register(c.Request.Context(), req.Username, req.Password); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, StatusResponse{Success: true, Message: "User registered successfully"})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondInvalid(c, "body", "Invalid JSON body")
		return
	}

	ok, err := s.deps.Auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil && !errors.Is(err, domain.ErrInvalidInput) {
		s.respondError(c, err)
		return
	}
	if !ok {
		s.respondError(c, domain.ErrInvalidCredentials)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{Success: true, Message: "Login successful"})
}

// storageError classifies err as a storage failure unless it already carries a
// category.
func storageError(op string, err error) error {
	if domain.ErrorCode(err) != domain.ErrCodeInternalServer {
		return err
	}
	return fmt.Errorf("failed to %s: %w: %v", op, domain.ErrStorageFailure, err)
}
