package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/zoonotic-report-server/internal/auth"
	"github.com/zoonotic-report-server/internal/domain"
	"github.com/zoonotic-report-server/internal/export"
	"github.com/zoonotic-report-server/internal/ocr"
	"github.com/zoonotic-report-server/internal/repository"
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

// stubAcquirer returns fixed text for any document and records the path it saw.
type stubAcquirer struct {
	text     string
	method   string
	err      error
	seenPath string
	existed  bool
}

func (s *stubAcquirer) Acquire(_ context.Context, doc ocr.Document) (*ocr.Result, error) {
	s.seenPath = doc.Path
	_, statErr := os.Stat(doc.Path)
	s.existed = statErr == nil
	if s.err != nil {
		return nil, s.err
	}
	return &ocr.Result{Text: s.text, Method: s.method, Pages: 1}, nil
}

// MockClassifier is a mock implementation of domain.Classifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, features []bool) (*domain.Classification, error) {
	args := m.Called(ctx, features)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Classification), args.Error(1)
}

func (m *MockClassifier) Labels() []string {
	return m.Called().Get(0).([]string)
}

// MockReportStore is a mock implementation of domain.ReportStore
type MockReportStore struct {
	mock.Mock
}

func (m *MockReportStore) Insert(ctx context.Context, report *domain.Report) (string, error) {
	args := m.Called(ctx, report)
	return args.String(0), args.Error(1)
}

func (m *MockReportStore) ListAll(ctx context.Context) ([]*domain.Report, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Report), args.Error(1)
}

func (m *MockReportStore) DeleteAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockReportStore) Health(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockReportStore) Close() error {
	return m.Called().Error(0)
}

type testEnv struct {
	server   *Server
	store    *repository.SQLiteReportStore
	acquirer *stubAcquirer
	uploads  string
}

func newTestEnv(t *testing.T, classifier domain.Classifier) *testEnv {
	t.Helper()
	logger := testLogger()

	dir, err := os.MkdirTemp("", "api_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := repository.NewSQLiteReportStore(filepath.Join(dir, "reports.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	users, err := auth.NewSQLiteUserStoreFromDB(store.DB())
	require.NoError(t, err)

	uploads := filepath.Join(dir, "uploads")
	require.NoError(t, os.MkdirAll(uploads, 0o755))

	acquirer := &stubAcquirer{}
	builder := service.NewReportBuilder(store, logger)
	pipeline := service.NewUploadPipeline(acquirer, nil, builder, logger)
	symptoms := service.NewSymptomService(service.NewSymptomClassifier(classifier, 50, logger), builder, logger)

	srv := NewServer(domain.ServerConfig{UploadDir: uploads, MaxUploadBytes: 1 << 20}, Dependencies{
		Pipeline: pipeline,
		Symptoms: symptoms,
		Reports:  store,
		Auth:     auth.NewService(users, bcrypt.MinCost, logger),
	}, logger)

	return &testEnv{server: srv, store: store, acquirer: acquirer, uploads: uploads}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestUpload(t *testing.T) {
	tests := []struct {
		name           string
		filename       string
		text           string
		method         string
		wantDisease    string
		wantResult     string
		wantBiomarkers map[string]float64
		wantSuggestion any
	}{
		{
			name:           "PDF text layer",
			filename:       "dengue.pdf",
			text:           "Dengue RT-PCR panel\nN gene Detected 23.8\nOverall result: Positive",
			method:         ocr.METHOD_PDF_TEXT,
			wantDisease:    "Dengue",
			wantResult:     "Positive",
			wantBiomarkers: map[string]float64{"N gene": 23.8},
			wantSuggestion: service.SuggestionDengue,
		},
		{
			name:           "Image OCR negative",
			filename:       "scan.PNG",
			text:           "Specimen received\nAntigen test negative",
			method:         ocr.METHOD_IMAGE_OCR,
			wantDisease:    "Unknown",
			wantResult:     "Negative",
			wantBiomarkers: map[string]float64{},
			wantSuggestion: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.acquirer.text = tt.text
			env.acquirer.method = tt.method

			w := env.do(uploadRequest(t, tt.filename, []byte("%PDF-1.4 fake")))
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["id"])
			assert.Equal(t, tt.wantDisease, body["disease"])
			assert.Equal(t, tt.wantResult, body["result"])
			assert.Equal(t, tt.wantSuggestion, body["suggestion"])

			markers := map[string]float64{}
			for k, v := range body["biomarkers"].(map[string]any) {
				markers[k] = v.(float64)
			}
			assert.Equal(t, tt.wantBiomarkers, markers)

			assert.True(t, env.acquirer.existed, "upload must exist while processing")
			_, err := os.Stat(env.acquirer.seenPath)
			assert.True(t, os.IsNotExist(err), "upload must be removed afterwards")

			reports, err := env.store.ListAll(context.Background())
			require.NoError(t, err)
			assert.Len(t, reports, 1)
		})
	}
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		wantMsg  string
		wantCode int
	}{
		{
			name:     "No file part",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "", nil) },
			wantMsg:  "No file uploaded",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "Unsupported extension",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "notes.txt", []byte("hi")) },
			wantMsg:  "Invalid file type",
			wantCode: http.StatusBadRequest,
		},
		{
			name: "Too large",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "big.png", bytes.Repeat([]byte("x"), 2<<20))
			},
			wantMsg:  "File too large",
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			w := env.do(tt.req(t))

			assert.Equal(t, tt.wantCode, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, domain.ErrCodeInvalidInput, resp.Code)
			assert.Equal(t, tt.wantMsg, resp.Error)
			assert.NotEmpty(t, resp.RequestID)

			entries, err := os.ReadDir(env.uploads)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestUpload_ExtractionFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.acquirer.err = domain.NewExtractionError(2, errors.New("tesseract exited 1"))

	w := env.do(uploadRequest(t, "report.pdf", []byte("%PDF")))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, domain.ErrCodeExtraction, resp.Code)
	assert.Equal(t, "Failed to extract text from document (page 3)", resp.Message)
	assert.NotContains(t, w.Body.String(), "tesseract")

	entries, err := os.ReadDir(env.uploads)
	require.NoError(t, err)
	assert.Empty(t, entries)

	reports, err := env.store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestUpload_ExtractionFailureHidesToolOutput(t *testing.T) {
	env := newTestEnv(t, nil)
	env.acquirer.err = domain.NewExtractionError(-1, errors.New("pdftoppm: /tmp/raster-123/page.png: permission denied"))

	w := env.do(uploadRequest(t, "scan.png", []byte("png")))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "Failed to extract text from document", resp.Message)
	assert.Equal(t, resp.Message, resp.Error)
	assert.NotContains(t, w.Body.String(), "/tmp/raster-123")
}

func TestSymptoms(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(jsonRequest(t, http.MethodPost, "/symptoms", SymptomsRequest{Symptoms: "severe headache and vomiting after fever"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp KeywordResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	require.NotEmpty(t, resp.PossibleDiseases)

	top := resp.PossibleDiseases[0]
	assert.Equal(t, domain.DENGUE, top.Disease)
	assert.Equal(t, domain.POSSIBLE, top.Result)
	assert.Subset(t, top.MatchedSymptoms, []string{"fever", "headache", "vomiting"})

	w = env.do(jsonRequest(t, http.MethodPost, "/symptoms", SymptomsRequest{Symptoms: "   "}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No symptoms provided", decodeError(t, w).Error)

	req := httptest.NewRequest(http.MethodPost, "/symptoms", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w = env.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredictSymptoms(t *testing.T) {
	t.Run("Classifier available", func(t *testing.T) {
		classifier := new(MockClassifier)
		classifier.On("Classify", mock.Anything, mock.MatchedBy(func(f []bool) bool {
			return len(f) == len(service.FeatureVocabulary)
		})).Return(&domain.Classification{
			Label:         "Rabies",
			Probabilities: map[string]float64{"Rabies": 0.873, "Dengue": 0.127},
		}, nil)

		env := newTestEnv(t, classifier)
		w := env.do(jsonRequest(t, http.MethodPost, "/predict_symptoms", SymptomsRequest{Symptoms: "bite, saliva, hydrophobia"}))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp domain.SymptomPrediction
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, "Rabies", resp.Prediction)
		assert.InDelta(t, 87.3, resp.Confidence, 0.001)
		require.NotNil(t, resp.Suggestion)
		assert.Equal(t, service.SuggestionRabies, *resp.Suggestion)
		assert.Subset(t, resp.MatchedFeatures, []string{"bite", "saliva", "hydrophobia"})
		classifier.AssertExpectations(t)
	})

	t.Run("No model", func(t *testing.T) {
		env := newTestEnv(t, nil)
		w := env.do(jsonRequest(t, http.MethodPost, "/predict_symptoms", SymptomsRequest{Symptoms: "fever"}))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, domain.ErrCodeModel, decodeError(t, w).Code)

		reports, err := env.store.ListAll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, reports)
	})
}

func TestReports_ListClearExport(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	env.do(jsonRequest(t, http.MethodPost, "/symptoms", SymptomsRequest{Symptoms: "dog bite"}))
	env.do(jsonRequest(t, http.MethodPost, "/symptoms", SymptomsRequest{Symptoms: "cough and seizure"}))

	w = env.do(httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var reports []domain.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, domain.RABIES, reports[0].Disease)
	assert.Equal(t, domain.NIPAH, reports[1].Disease)
	assert.Equal(t, domain.SOURCE_SYMPTOM_KEYWORD, reports[0].Source)

	w = env.do(httptest.NewRequest(http.MethodGet, "/reports/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=\"reports-")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	f.Close()

	for i := 0; i < 2; i++ {
		w = env.do(httptest.NewRequest(http.MethodDelete, "/clear_reports", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var status StatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		assert.True(t, status.Success)
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestReports_StorageFailure(t *testing.T) {
	store := new(MockReportStore)
	store.On("ListAll", mock.Anything).Return(nil, errors.New("disk I/O error"))
	store.On("DeleteAll", mock.Anything).Return(errors.New("database is locked"))
	store.On("Health", mock.Anything).Return(errors.New("database is locked"))

	srv := NewServer(domain.ServerConfig{}, Dependencies{Reports: store}, testLogger())

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"List", http.MethodGet, "/reports", http.StatusInternalServerError},
		{"Export", http.MethodGet, "/reports/export", http.StatusInternalServerError},
		{"Clear", http.MethodDelete, "/clear_reports", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, domain.ErrCodeStorage, resp.Code)
			assert.NotContains(t, resp.Message, "disk I/O")
		})
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "unhealthy", health.Components["storage"])
	assert.Equal(t, "unavailable", health.Components["classifier"])
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(jsonRequest(t, http.MethodPost, "/register", CredentialsRequest{Username: "vet01", Password: "s3cret-pass"}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	tests := []struct {
		name       string
		path       string
		body       CredentialsRequest
		wantStatus int
		wantError  string
	}{
		{"Duplicate registration", "/register", CredentialsRequest{Username: "vet01", Password: "another-pass"}, http.StatusConflict, "Username already exists"},
		{"Short password", "/register", CredentialsRequest{Username: "vet02", Password: "123"}, http.StatusBadRequest, ""},
		{"Login success", "/login", CredentialsRequest{Username: "vet01", Password: "s3cret-pass"}, http.StatusOK, ""},
		{"Wrong password", "/login", CredentialsRequest{Username: "vet01", Password: "wrong-pass"}, http.StatusUnauthorized, invalidCredentialsMessage},
		{"Unknown user", "/login", CredentialsRequest{Username: "nobody", Password: "s3cret-pass"}, http.StatusUnauthorized, invalidCredentialsMessage},
		{"Blank credentials", "/login", CredentialsRequest{}, http.StatusUnauthorized, invalidCredentialsMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(jsonRequest(t, http.MethodPost, tt.path, tt.body))
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantStatus < 300 {
				var status StatusResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
				assert.True(t, status.Success)
				return
			}
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, w).Error)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, Version, health.Version)
	assert.Equal(t, "healthy", health.Components["storage"])
	assert.Equal(t, "unavailable", health.Components["classifier"])
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError("f", "bad", nil), http.StatusBadRequest},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrUserExists, http.StatusConflict},
		{domain.ErrModelUnavailable, http.StatusServiceUnavailable},
		{domain.ErrStorageFailure, http.StatusInternalServerError},
		{domain.NewExtractionError(-1, errors.New("x")), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(domain.ErrorCode(tt.err)))
		})
	}
}
