package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/sounduoex/accounts/internal/db"
	"github.com/sounduoex/accounts/internal/model"
)

func newTestRepo(t *testing.T) UserRepository {
	t.Helper()

	conn, err := sqlx.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	// In-memory sqlite: every connection is its own database
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.RunMigrations(conn.DB, "sqlite"))

	return NewUserRepository(conn)
}

func newUser(email string) *model.User {
	now := time.Now().UTC()
	token := uuid.New().String()
	return &model.User{
		ID:                uuid.New().String(),
		Email:             email,
		PasswordHash:      "$2a$04$fakehashfakehashfakehash",
		Name:              "Ann",
		EmailVerified:     false,
		VerificationToken: &token,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("a@x.com")))

	err := repo.Create(ctx, newUser("a@x.com"))
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestByEmail_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.ByEmail(ctx, "ghost@x.com")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestByID_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := newUser("a@x.com")
	require.NoError(t, repo.Create(ctx, user))

	got, err := repo.ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)
	assert.Equal(t, user.Name, got.Name)
	assert.False(t, got.EmailVerified)
	require.NotNil(t, got.VerificationToken)
	assert.Equal(t, *user.VerificationToken, *got.VerificationToken)
}

func TestConsumeVerificationToken(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := newUser("a@x.com")
	require.NoError(t, repo.Create(ctx, user))
	token := *user.VerificationToken

	got, err := repo.ConsumeVerificationToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.True(t, got.EmailVerified)
	assert.Nil(t, got.VerificationToken)

	// Replay: token already cleared
	_, err = repo.ConsumeVerificationToken(ctx, token)
	require.ErrorIs(t, err, ErrUserNotFound)

	// Never issued
	_, err = repo.ConsumeVerificationToken(ctx, "never-issued")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func setResetToken(t *testing.T, repo UserRepository, user *model.User, token string, expiresAt time.Time) {
	t.Helper()
	ctx := context.Background()

	stored, err := repo.ByID(ctx, user.ID)
	require.NoError(t, err)
	stored.ResetToken = &token
	stored.ResetTokenExpiresAt = &expiresAt
	require.NoError(t, repo.Update(ctx, stored))
}

func TestByValidResetToken_ExcludesExpired(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := newUser("a@x.com")
	require.NoError(t, repo.Create(ctx, user))

	setResetToken(t, repo, user, "expired-token", time.Now().Add(-time.Hour))
	_, err := repo.ByValidResetToken(ctx, "expired-token")
	require.ErrorIs(t, err, ErrUserNotFound)

	setResetToken(t, repo, user, "live-token", time.Now().Add(time.Hour))
	got, err := repo.ByValidResetToken(ctx, "live-token")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestConsumeResetToken(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := newUser("a@x.com")
	require.NoError(t, repo.Create(ctx, user))
	setResetToken(t, repo, user, "reset-token", time.Now().Add(time.Hour))

	got, err := repo.ConsumeResetToken(ctx, "reset-token", "new-hash")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Nil(t, got.ResetToken)
	assert.Nil(t, got.ResetTokenExpiresAt)

	// Token cleared atomically with the password change
	stored, err := repo.ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", stored.PasswordHash)
	assert.Nil(t, stored.ResetToken)

	_, err = repo.ConsumeResetToken(ctx, "reset-token", "other-hash")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestConsumeResetToken_Expired(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := newUser("a@x.com")
	require.NoError(t, repo.Create(ctx, user))
	setResetToken(t, repo, user, "stale-token", time.Now().Add(-time.Minute))

	// Matches a stored token string but the expiry is in the past
	_, err := repo.ConsumeResetToken(ctx, "stale-token", "new-hash")
	require.ErrorIs(t, err, ErrUserNotFound)

	// Password unchanged
	stored, err := repo.ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.PasswordHash, stored.PasswordHash)
}

func TestClearExpiredResetTokens(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	expired := newUser("expired@x.com")
	live := newUser("live@x.com")
	require.NoError(t, repo.Create(ctx, expired))
	require.NoError(t, repo.Create(ctx, live))

	setResetToken(t, repo, expired, "expired-token", time.Now().Add(-time.Hour))
	setResetToken(t, repo, live, "live-token", time.Now().Add(time.Hour))

	n, err := repo.ClearExpiredResetTokens(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	gotExpired, err := repo.ByID(ctx, expired.ID)
	require.NoError(t, err)
	assert.Nil(t, gotExpired.ResetToken)

	gotLive, err := repo.ByID(ctx, live.ID)
	require.NoError(t, err)
	require.NotNil(t, gotLive.ResetToken)
	assert.Equal(t, "live-token", *gotLive.ResetToken)
}

func TestUpdate_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	user := newUser("a@x.com")
	err := repo.Update(ctx, user)
	require.ErrorIs(t, err, ErrUserNotFound)
}
