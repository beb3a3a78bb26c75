package auth

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoonotic-report-server/internal/domain"
)

func setupMockDB(t *testing.T) (*PostgresUserStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store, err := NewPostgresUserStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestPostgresUserStore_Create(t *testing.T) {
	store, mock := setupMockDB(t)
	defer store.Close()

	created := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (username, password_hash, created_at)")).
		WithArgs("analyst", "$2a$04$hash", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, created))

	user := &domain.User{Username: "analyst", PasswordHash: "$2a$04$hash"}
	require.NoError(t, store.Create(context.Background(), user))
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, created, user.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserStore_CreateDuplicate(t *testing.T) {
	store, mock := setupMockDB(t)
	defer store.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := store.Create(context.Background(), &domain.User{Username: "analyst", PasswordHash: "x"})
	assert.ErrorIs(t, err, domain.ErrUserExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserStore_CreateOtherError(t *testing.T) {
	store, mock := setupMockDB(t)
	defer store.Close()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(sql.ErrConnDone)

	err := store.Create(context.Background(), &domain.User{Username: "analyst", PasswordHash: "x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUserExists)
}

func TestPostgresUserStore_GetByUsername(t *testing.T) {
	store, mock := setupMockDB(t)
	defer store.Close()
	ctx := context.Background()

	query := regexp.QuoteMeta("SELECT id, username, password_hash, created_at")
	mock.ExpectQuery(query).
		WithArgs("analyst").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "created_at"}).
			AddRow(3, "analyst", "$2a$04$hash", time.Now()))
	mock.ExpectQuery(query).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	user, err := store.GetByUsername(ctx, "analyst")
	require.NoError(t, err)
	assert.Equal(t, int64(3), user.ID)
	assert.Equal(t, "$2a$04$hash", user.PasswordHash)

	_, err = store.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresUserStore_NilDB(t *testing.T) {
	_, err := NewPostgresUserStore(nil)
	assert.Error(t, err)
}
