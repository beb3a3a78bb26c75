package domain

import (
	"context"
)

// ReportStore is the storage collaborator. Insert is single-document atomic and
// DeleteAll removes every record atomically from the caller's perspective.
type ReportStore interface {
	Insert(ctx context.Context, report *Report) (string, error)
	ListAll(ctx context.Context) ([]*Report, error)
	DeleteAll(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}

// UserStore persists accounts for the authentication collaborator.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	Close() error
}

// Authenticator verifies and registers credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (bool, error)
	Register(ctx context.Context, username, password string) error
}

// Classifier produces a label and probability distribution from a fixed-order
// boolean feature vector.
type Classifier interface {
	Classify(ctx context.Context, features []bool) (*Classification, error)
	Labels() []string
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	IsProduction() bool
	IsDevelopment() bool
}
