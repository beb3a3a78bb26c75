package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/zoonotic-report-server/internal/domain"
	"github.com/zoonotic-report-server/internal/middleware"
)

// ErrorResponse is the body of every failed request. Error duplicates Message for
// clients that only read the error field.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

const (
	extractionFailedMessage   = "Failed to extract text from document"
	invalidCredentialsMessage = "Invalid username or password"
)

// StatusFor maps a wire error code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case domain.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case domain.ErrCodeAuthentication:
		return http.StatusUnauthorized
	case domain.ErrCodeConflict:
		return http.StatusConflict
	case domain.ErrCodeModel:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is what the client sees. Storage and internal failures are not
// echoed back verbatim.
func publicMessage(code string, err error) string {
	switch code {
	case domain.ErrCodeInvalidInput:
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return ve.Message
		}
		return err.Error()
	case domain.ErrCodeExtraction:
		// Tool stderr and temp paths stay in the log.
		var ee *domain.ExtractionError
		if errors.As(err, &ee) && ee.Page >= 0 {
			return fmt.Sprintf("%s (page %d)", extractionFailedMessage, ee.Page+1)
		}
		return extractionFailedMessage
	case domain.ErrCodeModel:
		return "Symptom classifier is not available"
	case domain.ErrCodeStorage:
		return "Report storage is unavailable"
	case domain.ErrCodeAuthentication:
		return invalidCredentialsMessage
	case domain.ErrCodeConflict:
		return "Username already exists"
	default:
		return "Internal server error"
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := StatusFor(code)
	apiErr := domain.NewAPIError(code, publicMessage(code, err), "", c.GetString(middleware.RequestIDKey))

	entry := s.logger.WithFields(logrus.Fields{
		"request_id": apiErr.RequestID,
		"code":       code,
		"status":     status,
		"path":       c.Request.URL.Path,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     apiErr.Message,
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Details:   apiErr.Details,
		Timestamp: apiErr.Timestamp,
		RequestID: apiErr.RequestID,
	})
}

// respondInvalid rejects a request before it reaches a collaborator.
func (s *Server) respondInvalid(c *gin.Context, field, message string) {
	s.respondError(c, domain.NewValidationError(field, message, nil))
}
