package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sounduoex/accounts/internal/model"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	ByVerificationToken(ctx context.Context, token string) (*model.User, error)
	ByValidResetToken(ctx context.Context, token string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	ConsumeVerificationToken(ctx context.Context, token string) (*model.User, error)
	ConsumeResetToken(ctx context.Context, token, passwordHash string) (*model.User, error)
	ClearExpiredResetTokens(ctx context.Context) (int64, error)
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, name, email_verified, verification_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.EmailVerified,
		user.VerificationToken,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		// Unique constraint violation (works for both SQLite and PostgreSQL)
		errStr := err.Error()
		if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "duplicate key value") {
			return ErrDuplicateEmail
		}
		return err
	}

	return nil
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}

	return user, err
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE email = $1`

	err := r.db.GetContext(ctx, user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}

	return user, err
}

func (r *userRepository) ByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE verification_token = $1`

	err := r.db.GetContext(ctx, user, query, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}

	return user, err
}

// ByValidResetToken treats an expired token as absent.
func (r *userRepository) ByValidResetToken(ctx context.Context, token string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE reset_token = $1 AND reset_token_expires_at > $2`

	err := r.db.GetContext(ctx, user, query, token, time.Now())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}

	return user, err
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users
		SET email = $1, password_hash = $2, name = $3, email_verified = $4,
		    verification_token = $5, reset_token = $6, reset_token_expires_at = $7, updated_at = $8
		WHERE id = $9
	`

	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.EmailVerified,
		user.VerificationToken,
		user.ResetToken,
		user.ResetTokenExpiresAt,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	return nil
}

// ConsumeVerificationToken atomically marks the matching user as verified and
// clears the token. Only one caller can succeed for a given token; a replay
// finds no matching row and gets ErrUserNotFound.
func (r *userRepository) ConsumeVerificationToken(ctx context.Context, token string) (*model.User, error) {
	now := time.Now()

	query := `
		UPDATE users
		SET email_verified = TRUE, verification_token = NULL, updated_at = $1
		WHERE verification_token = $2
		RETURNING *
	`

	user := &model.User{}
	err := r.db.GetContext(ctx, user, query, now, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

// ConsumeResetToken writes the new password hash and clears the reset token in
// a single statement, keyed on an unexpired token. There is no window where the
// new password exists under a still-valid token.
func (r *userRepository) ConsumeResetToken(ctx context.Context, token, passwordHash string) (*model.User, error) {
	now := time.Now()

	query := `
		UPDATE users
		SET password_hash = $1, reset_token = NULL, reset_token_expires_at = NULL, updated_at = $2
		WHERE reset_token = $3
		AND reset_token_expires_at > $4
		RETURNING *
	`

	user := &model.User{}
	err := r.db.GetContext(ctx, user, query, passwordHash, now, token, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

// ClearExpiredResetTokens removes stale reset tokens. An expired token already
// never validates; this is periodic hygiene, not a correctness requirement.
func (r *userRepository) ClearExpiredResetTokens(ctx context.Context) (int64, error) {
	query := `
		UPDATE users
		SET reset_token = NULL, reset_token_expires_at = NULL, updated_at = $1
		WHERE reset_token IS NOT NULL
		AND reset_token_expires_at <= $2
	`

	now := time.Now()
	result, err := r.db.ExecContext(ctx, query, now, now)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
