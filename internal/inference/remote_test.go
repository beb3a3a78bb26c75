package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoonotic-report-server/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestRemoteClassifier_Classify(t *testing.T) {
	var got remoteRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(remoteResponse{
			Label:         "Rabies",
			Probabilities: map[string]float64{"Rabies": 0.873, "Dengue": 0.127},
		})
	}))
	defer server.Close()

	c, err := NewRemoteClassifier(RemoteConfig{URL: server.URL, RateLimit: 100}, testFeatures, quietLogger())
	require.NoError(t, err)
	assert.Empty(t, c.Labels())

	result, err := c.Classify(context.Background(), []bool{false, true, false})
	require.NoError(t, err)
	assert.Equal(t, "Rabies", result.Label)
	assert.Equal(t, 0.873, result.TopProbability())

	assert.Equal(t, []int{0, 1, 0}, got.Features)
	assert.Equal(t, testFeatures, got.FeatureNames)
	assert.Equal(t, []string{"Dengue", "Rabies"}, c.Labels())
}

func TestRemoteClassifier_BreakerOpens(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	c, err := NewRemoteClassifier(RemoteConfig{URL: server.URL, RateLimit: 100}, testFeatures, quietLogger())
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := c.Classify(ctx, []bool{true, false, false})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
		assert.NotErrorIs(t, err, domain.ErrModelUnavailable)
	}

	_, err = c.Classify(ctx, []bool{true, false, false})
	assert.ErrorIs(t, err, domain.ErrModelUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "open breaker must not reach the endpoint")
	assert.Equal(t, "open", c.State())
}

func TestRemoteClassifier_EmptyPrediction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"label":"","probabilities":{}}`))
	}))
	defer server.Close()

	c, err := NewRemoteClassifier(RemoteConfig{URL: server.URL}, testFeatures, quietLogger())
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), []bool{true, false, false})
	assert.Error(t, err)
}

func TestNewRemoteClassifier_RequiresURL(t *testing.T) {
	_, err := NewRemoteClassifier(RemoteConfig{}, testFeatures, quietLogger())
	assert.Error(t, err)
}
