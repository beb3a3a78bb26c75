package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Mongo       MongoConfig      `mapstructure:"mongo"`
	OCR         OCRConfig        `mapstructure:"ocr"`
	Classifier  ClassifierConfig `mapstructure:"classifier"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Logging     LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	UploadDir      string        `mapstructure:"upload_dir"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// StorageConfig selects the report and user store backend.
type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // "sqlite", "postgres", "mongo"
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DatabaseConfig represents PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// MongoConfig represents MongoDB document store configuration
type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// OCRConfig configures the external text acquisition tools
type OCRConfig struct {
	Tesseract     string `mapstructure:"tesseract"`
	Pdftotext     string `mapstructure:"pdftotext"`
	Pdftoppm      string `mapstructure:"pdftoppm"`
	TesseractLang string `mapstructure:"tesseract_lang"`
	TessdataDir   string `mapstructure:"tessdata_dir"`
	DPI           int    `mapstructure:"dpi"`
	PSM           int    `mapstructure:"psm"`
	OEM           int    `mapstructure:"oem"`
	MaxPages      int    `mapstructure:"max_pages"`
}

// ClassifierConfig configures the symptom classifier collaborator. ModelPath takes
// precedence over RemoteURL; with neither set the classifier strategy is unavailable.
type ClassifierConfig struct {
	ModelPath      string        `mapstructure:"model_path"`
	RemoteURL      string        `mapstructure:"remote_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      int           `mapstructure:"rate_limit"`
	CacheSize      int           `mapstructure:"cache_size"`
	SuggestionFrom float64       `mapstructure:"suggestion_threshold"`
}

// CacheConfig represents the optional Redis prediction cache
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
