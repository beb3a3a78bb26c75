// Package config provides configuration management for the report server.
// This file contains the lightweight configuration for single-binary operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zoonotic-report-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and keeps everything under DataDir.
type LiteConfig struct {
	DataDir string // Base directory for the database and uploads

	HTTPHost       string
	HTTPPort       int
	AllowedOrigins []string
	MaxUploadBytes int64

	// Classifier
	ModelPath     string // Optional: local model file
	ClassifierURL string // Optional: remote prediction endpoint
	CacheSize     int    // In-memory prediction cache entries

	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()

	return &LiteConfig{
		DataDir:        filepath.Join(homeDir, ".zoonotic-report-server"),
		HTTPHost:       "127.0.0.1",
		HTTPPort:       5000,
		MaxUploadBytes: 20 << 20,
		CacheSize:      1024,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("ZOONOTIC_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("ZOONOTIC_HTTP_HOST"); v != "" {
		cfg.HTTPHost = v
	}
	if v := os.Getenv("ZOONOTIC_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}
	if v := os.Getenv("ZOONOTIC_ALLOWED_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}
	if v := os.Getenv("ZOONOTIC_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxUploadBytes = n
		}
	}

	cfg.ModelPath = os.Getenv("ZOONOTIC_MODEL_PATH")
	cfg.ClassifierURL = os.Getenv("ZOONOTIC_CLASSIFIER_URL")
	if v := os.Getenv("ZOONOTIC_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheSize = n
		}
	}

	if v := os.Getenv("ZOONOTIC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ZOONOTIC_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// DatabasePath returns the path to the SQLite database shared by reports and users.
func (c *LiteConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, "zoonotic.db")
}

// UploadDir returns the directory for in-flight uploads.
func (c *LiteConfig) UploadDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.UploadDir(), 0755)
}

// ToConfig expands the lite settings into a full configuration with the SQLite
// driver selected.
func (c *LiteConfig) ToConfig() *domain.Config {
	return &domain.Config{
		Environment: "development",
		Server: domain.ServerConfig{
			Host:           c.HTTPHost,
			Port:           c.HTTPPort,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   120 * time.Second,
			IdleTimeout:    120 * time.Second,
			RequestTimeout: 120 * time.Second,
			MaxUploadBytes: c.MaxUploadBytes,
			UploadDir:      c.UploadDir(),
			AllowedOrigins: c.AllowedOrigins,
		},
		Storage: domain.StorageConfig{
			Driver:     DRIVER_SQLITE,
			SQLitePath: c.DatabasePath(),
		},
		Classifier: domain.ClassifierConfig{
			ModelPath: c.ModelPath,
			RemoteURL: c.ClassifierURL,
			Timeout:   10 * time.Second,
			RateLimit: 10,
			CacheSize: c.CacheSize,
		},
		Logging: domain.LoggingConfig{
			Level:  c.LogLevel,
			Format: c.LogFormat,
		},
	}
}
