package auth

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoonotic-report-server/internal/domain"
)

func createTestStore(t *testing.T) *SQLiteUserStore {
	tmpDir, err := os.MkdirTemp("", "users-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := NewSQLiteUserStore(filepath.Join(tmpDir, "users.db"))
	require.NoError(t, err)
	return store
}

func TestSQLiteUserStore_CreateAndGet(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	user := &domain.User{Username: "analyst", PasswordHash: "$2a$04$hash"}
	require.NoError(t, store.Create(ctx, user))
	assert.NotZero(t, user.ID, "ID should be assigned")
	assert.False(t, user.CreatedAt.IsZero(), "CreatedAt should be set")

	got, err := store.GetByUsername(ctx, "analyst")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "$2a$04$hash", got.PasswordHash)
}

func TestSQLiteUserStore_Duplicate(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &domain.User{Username: "analyst", PasswordHash: "a"}))
	err := store.Create(ctx, &domain.User{Username: "analyst", PasswordHash: "b"})
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestSQLiteUserStore_NotFound(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	_, err := store.GetByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteUserStore_SharedHandle(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "users-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	db, err := sql.Open("sqlite", filepath.Join(tmpDir, "shared.db"))
	require.NoError(t, err)
	defer db.Close()

	store, err := NewSQLiteUserStoreFromDB(db)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// closing the store leaves the shared handle usable
	assert.NoError(t, db.Ping())
}

func TestService_WithSQLiteStore(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()
	svc := testService(store)

	require.NoError(t, svc.Register(ctx, "analyst", "s3cret-pw"))
	assert.ErrorIs(t, svc.Register(ctx, "analyst", "other-pw"), domain.ErrUserExists)

	ok, err := svc.Authenticate(ctx, "analyst", "s3cret-pw")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Authenticate(ctx, "analyst", "other-pw")
	require.NoError(t, err)
	assert.False(t, ok)
}
