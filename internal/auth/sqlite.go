package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zoonotic-report-server/internal/domain"
)

// SQLiteUserStore implements domain.UserStore using SQLite.
type SQLiteUserStore struct {
	db     *sql.DB
	ownsDB bool
}

// NewSQLiteUserStore opens (or creates) the user database at dbPath.
func NewSQLiteUserStore(dbPath string) (*SQLiteUserStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	store, err := NewSQLiteUserStoreFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	store.ownsDB = true
	return store, nil
}

// NewSQLiteUserStoreFromDB uses an already open handle, typically shared with the
// report store. The caller keeps ownership of db.
func NewSQLiteUserStoreFromDB(db *sql.DB) (*SQLiteUserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := createUserSchema(db); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteUserStore{db: db}, nil
}

func createUserSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Create implements domain.UserStore.
func (s *SQLiteUserStore) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)",
		user.Username, user.PasswordHash, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", domain.ErrUserExists, user.Username)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	return nil
}

// GetByUsername implements domain.UserStore.
func (s *SQLiteUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	user := &domain.User{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?",
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return user, nil
}

// Close implements domain.UserStore. A shared handle is left open.
func (s *SQLiteUserStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
