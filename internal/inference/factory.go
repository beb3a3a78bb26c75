package inference

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/zoonotic-report-server/internal/domain"
)

// New builds the configured classifier: a local model when ModelPath is set,
// otherwise a remote client when RemoteURL is set, wrapped in the prediction cache.
// With neither configured it returns domain.ErrModelUnavailable.
func New(ctx context.Context, cfg domain.ClassifierConfig, cacheCfg domain.CacheConfig, features []string, logger *logrus.Logger) (domain.Classifier, error) {
	var (
		inner domain.Classifier
		err   error
	)
	switch {
	case cfg.ModelPath != "":
		inner, err = LoadModel(cfg.ModelPath, features)
		if err != nil {
			return nil, fmt.Errorf("loading classifier model: %w", err)
		}
		logger.WithField("model", inner.(*ModelClassifier).Name()).Info("Loaded local classifier model")
	case cfg.RemoteURL != "":
		inner, err = NewRemoteClassifier(RemoteConfig{
			URL:       cfg.RemoteURL,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
		}, features, logger)
		if err != nil {
			return nil, fmt.Errorf("creating remote classifier: %w", err)
		}
		logger.WithField("url", cfg.RemoteURL).Info("Using remote classifier")
	default:
		return nil, fmt.Errorf("%w: no model_path or remote_url configured", domain.ErrModelUnavailable)
	}

	if cfg.CacheSize < 0 {
		return inner, nil
	}

	var rdb *redis.Client
	if cacheCfg.Enabled && cacheCfg.RedisURL != "" {
		client, err := NewRedisClient(ctx, cacheCfg)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, classification cache is memory-only")
		} else {
			rdb = client
		}
	}
	cached, err := NewCachedClassifier(inner, cfg.CacheSize, rdb, cacheCfg.DefaultTTL, logger)
	if err != nil {
		return nil, err
	}
	return cached, nil
}
