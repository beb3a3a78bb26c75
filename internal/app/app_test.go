package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoonotic-report-server/internal/config"
	"github.com/zoonotic-report-server/internal/domain"
	"github.com/zoonotic-report-server/internal/inference"
	"github.com/zoonotic-report-server/internal/ocr"
	"github.com/zoonotic-report-server/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

type fixedAcquirer struct{ text string }

func (f fixedAcquirer) Acquire(context.Context, ocr.Document) (*ocr.Result, error) {
	return &ocr.Result{Text: f.text, Method: ocr.METHOD_PDF_TEXT, Pages: 1}, nil
}

func liteConfig(t *testing.T) *domain.Config {
	t.Helper()
	dir, err := os.MkdirTemp("", "app_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	lite := &config.LiteConfig{DataDir: dir, HTTPHost: "127.0.0.1", HTTPPort: 5000, MaxUploadBytes: 1 << 20, LogLevel: "info", LogFormat: "json"}
	require.NoError(t, lite.EnsureDataDir())
	return lite.ToConfig()
}

// writeModel writes a model over the full feature vocabulary that favours Rabies
// for bite-related features and Dengue otherwise.
func writeModel(t *testing.T, dir string) string {
	t.Helper()
	n := len(service.FeatureVocabulary)
	dengue := make([]float64, n)
	rabies := make([]float64, n)
	for i, f := range service.FeatureVocabulary {
		switch f {
		case "bite", "saliva", "hydrophobia":
			rabies[i] = 4
		case "fever", "headache", "rash":
			dengue[i] = 4
		}
	}
	model := inference.ModelFile{
		Name:     "test",
		Features: service.FeatureVocabulary,
		Labels:   []string{"Dengue", "Rabies"},
		Weights:  [][]float64{dengue, rabies},
		Bias:     []float64{0, 0},
	}
	data, err := json.Marshal(model)
	require.NoError(t, err)

	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestNew_SQLiteWithoutClassifier(t *testing.T) {
	ctx := context.Background()
	cfg := liteConfig(t)

	a, err := New(ctx, cfg, testLogger(), WithAcquirer(fixedAcquirer{text: "Rabies RT-PCR\nResult: Positive"}))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Classifier)
	assert.False(t, a.Symptoms.ClassifierAvailable())

	w := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	report, err := a.Pipeline.Process(ctx, ocr.Document{Path: "/tmp/x.pdf", Name: "x.pdf"})
	require.NoError(t, err)
	assert.Equal(t, domain.RABIES, report.Disease)
	assert.Equal(t, domain.POSITIVE, report.Result)

	require.NoError(t, a.Users.Create(ctx, &domain.User{Username: "vet", PasswordHash: "x"}))
	user, err := a.Users.GetByUsername(ctx, "vet")
	require.NoError(t, err)
	assert.Equal(t, "vet", user.Username)

	reports, err := a.Reports.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestNew_WithModel(t *testing.T) {
	ctx := context.Background()
	cfg := liteConfig(t)
	cfg.Classifier.ModelPath = writeModel(t, filepath.Dir(cfg.Storage.SQLitePath))
	cfg.Classifier.CacheSize = 16

	a, err := New(ctx, cfg, testLogger(), WithAcquirer(fixedAcquirer{}))
	require.NoError(t, err)
	defer a.Close()

	require.True(t, a.Symptoms.ClassifierAvailable())
	_, cached := a.Classifier.(*inference.CachedClassifier)
	assert.True(t, cached)

	body, _ := json.Marshal(map[string]string{"symptoms": "bite, saliva, hydrophobia"})
	req := httptest.NewRequest(http.MethodPost, "/predict_symptoms", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var prediction domain.SymptomPrediction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prediction))
	assert.Equal(t, "Rabies", prediction.Prediction)
	assert.Greater(t, prediction.Confidence, 50.0)
	require.NotNil(t, prediction.Suggestion)
	assert.Equal(t, service.SuggestionRabies, *prediction.Suggestion)
}

func TestNew_BrokenModelKeepsServing(t *testing.T) {
	cfg := liteConfig(t)
	cfg.Classifier.ModelPath = filepath.Join(filepath.Dir(cfg.Storage.SQLitePath), "missing.json")

	logger, hook := test.NewNullLogger()
	a, err := New(context.Background(), cfg, logger, WithAcquirer(fixedAcquirer{}))
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.Symptoms.ClassifierAvailable())

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Message == "Symptom classifier unavailable, prediction endpoint disabled" {
			warned = true
			assert.Contains(t, entry.Data[logrus.ErrorKey].(error).Error(), "missing.json")
		}
	}
	assert.True(t, warned)
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := liteConfig(t)
	cfg.Storage.Driver = "dynamo"

	_, err := New(context.Background(), cfg, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
