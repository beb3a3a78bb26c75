package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/zoonotic-report-server/internal/domain"
)

// RemoteConfig configures the HTTP inference client.
type RemoteConfig struct {
	URL       string
	Timeout   time.Duration
	RateLimit int // requests per second
}

type remoteRequest struct {
	Features     []int    `json:"features"`
	FeatureNames []string `json:"feature_names"`
}

type remoteResponse struct {
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// RemoteClassifier calls an inference endpoint over HTTP. Calls are rate limited
// and guarded by a circuit breaker; an open breaker reports the model unavailable.
type RemoteClassifier struct {
	url          string
	featureNames []string
	httpClient   *http.Client
	rateLimit    *rate.Limiter
	breaker      *gobreaker.CircuitBreaker
	logger       *logrus.Logger

	mu     sync.RWMutex
	labels []string
}

// NewRemoteClassifier creates a client for cfg.URL. featureNames is sent with every
// request so the server can verify the layout.
func NewRemoteClassifier(cfg RemoteConfig, featureNames []string, logger *logrus.Logger) (*RemoteClassifier, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("remote classifier URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if logger == nil {
		logger = logrus.New()
	}

	c := &RemoteClassifier{
		url:          cfg.URL,
		featureNames: append([]string(nil), featureNames...),
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		rateLimit:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:       logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "classifier",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
	return c, nil
}

// Classify implements domain.Classifier.
func (c *RemoteClassifier) Classify(ctx context.Context, features []bool) (*domain.Classification, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.call(ctx, features)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: remote classifier circuit open", domain.ErrModelUnavailable)
		}
		return nil, fmt.Errorf("remote classification failed: %w", err)
	}
	return result.(*domain.Classification), nil
}

func (c *RemoteClassifier) call(ctx context.Context, features []bool) (*domain.Classification, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	payload := remoteRequest{
		Features:     make([]int, len(features)),
		FeatureNames: c.featureNames,
	}
	for i, set := range features {
		if set {
			payload.Features[i] = 1
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("inference endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Label == "" || len(out.Probabilities) == 0 {
		return nil, fmt.Errorf("inference endpoint returned an empty prediction")
	}

	c.rememberLabels(out.Probabilities)
	return &domain.Classification{Label: out.Label, Probabilities: out.Probabilities}, nil
}

func (c *RemoteClassifier) rememberLabels(probs map[string]float64) {
	labels := make([]string, 0, len(probs))
	for l := range probs {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	c.mu.Lock()
	c.labels = labels
	c.mu.Unlock()
}

// Labels implements domain.Classifier. It is empty until the first successful call.
func (c *RemoteClassifier) Labels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.labels...)
}

// State reports the circuit breaker state for health checks.
func (c *RemoteClassifier) State() string {
	return c.breaker.State().String()
}
