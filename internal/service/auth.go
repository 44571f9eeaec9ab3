package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sounduoex/accounts/internal/model"
	"github.com/sounduoex/accounts/internal/repository"
	"github.com/sounduoex/accounts/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidInput       = errors.New("invalid input")
)

// Notifier sends account emails. Delivery failures are non-fatal to the state
// change already persisted; callers log and move on.
type Notifier interface {
	SendVerificationEmail(email, token, name string) error
	SendPasswordResetEmail(email, token, name string) error
	SendWelcomeEmail(email, name string) error
}

type AuthService struct {
	userRepository   repository.UserRepository
	notifier         Notifier
	jwtSecret        string
	jwtExpiry        time.Duration
	resetTokenExpiry time.Duration
	bcryptCost       int
}

func NewAuthService(
	userRepository repository.UserRepository,
	notifier Notifier,
	jwtSecret string,
	jwtExpiry time.Duration,
	resetTokenExpiry time.Duration,
	bcryptCost int,
) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}

	return &AuthService{
		userRepository:   userRepository,
		notifier:         notifier,
		jwtSecret:        jwtSecret,
		jwtExpiry:        jwtExpiry,
		resetTokenExpiry: resetTokenExpiry,
		bcryptCost:       bcryptCost,
	}
}

// Register creates an unverified user and sends the verification email.
// The user record is persisted before the send; a failed send leaves the
// record in place so verification can be resent.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*model.PublicUser, error) {
	email = validation.NormalizeEmail(email)

	err := validation.ValidateEmail(email)
	if err != nil {
		return nil, ErrInvalidEmail
	}
	err = validation.ValidatePassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	err = validation.ValidateName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verificationToken, err := s.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:                uuid.New().String(),
		Email:             email,
		PasswordHash:      hash,
		Name:              strings.TrimSpace(name),
		EmailVerified:     false,
		VerificationToken: &verificationToken,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.userRepository.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	err = s.notifier.SendVerificationEmail(user.Email, verificationToken, user.Name)
	if err != nil {
		slog.Warn("failed to send verification email", "error", err, "user_id", user.ID)
	}

	slog.Info("user registered", "user_id", user.ID, "email", user.Email)
	return user.Public(), nil
}

// VerifyEmail consumes a verification token. The consume is atomic; a replay
// or a never-issued token fails with ErrInvalidToken.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*model.PublicUser, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepository.ConsumeVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to consume verification token: %w", err)
	}

	err = s.notifier.SendWelcomeEmail(user.Email, user.Name)
	if err != nil {
		slog.Warn("failed to send welcome email", "error", err, "user_id", user.ID)
	}

	slog.Info("email verified", "user_id", user.ID)
	return user.Public(), nil
}

// ResendVerification rotates the verification token and re-sends the email.
// Unknown or already-verified accounts succeed silently to prevent enumeration.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)

	err := validation.ValidateEmail(email)
	if err != nil {
		return ErrInvalidEmail
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			slog.Info("verification resend requested for non-existent email", "email", email)
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if user.EmailVerified {
		slog.Info("verification resend requested for verified account", "user_id", user.ID)
		return nil
	}

	verificationToken, err := s.GenerateToken()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	user.VerificationToken = &verificationToken
	err = s.userRepository.Update(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to rotate verification token: %w", err)
	}

	err = s.notifier.SendVerificationEmail(user.Email, verificationToken, user.Name)
	if err != nil {
		slog.Warn("failed to send verification email", "error", err, "user_id", user.ID)
	}

	return nil
}

// Login authenticates a verified user and issues a signed session token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.PublicUser, error) {
	email = validation.NormalizeEmail(email)

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to get user: %w", err)
	}

	err = s.ComparePassword(password, user.PasswordHash)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return "", nil, ErrEmailNotVerified
	}

	token, err := s.GenerateJWT(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	slog.Info("user logged in", "user_id", user.ID)
	return token, user.Public(), nil
}

// ForgotPassword always succeeds outwardly to prevent email enumeration. A
// reset token is issued and mailed only when the account exists and is
// verified; a new request overwrites any prior pending reset, which then no
// longer validates.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)

	err := validation.ValidateEmail(email)
	if err != nil {
		return ErrInvalidEmail
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			slog.Info("password reset requested for non-existent email", "email", email)
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	// A reset is only settable on a verified account
	if !user.EmailVerified {
		slog.Info("password reset requested for unverified account", "user_id", user.ID)
		return nil
	}

	resetToken, err := s.GenerateToken()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	expiresAt := time.Now().Add(s.resetTokenExpiry)
	user.ResetToken = &resetToken
	user.ResetTokenExpiresAt = &expiresAt

	err = s.userRepository.Update(ctx, user)
	if err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}

	err = s.notifier.SendPasswordResetEmail(user.Email, resetToken, user.Name)
	if err != nil {
		slog.Warn("failed to send password reset email", "error", err, "user_id", user.ID)
	}

	slog.Info("password reset requested", "user_id", user.ID)
	return nil
}

// ResetPassword sets a new password via a pending reset token. The hash write
// and the token clear happen in one atomic store update; an absent or expired
// token fails with ErrInvalidToken.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidToken
	}

	err := validation.ValidatePassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepository.ConsumeResetToken(ctx, token, hash)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to consume reset token: %w", err)
	}

	slog.Info("password reset completed", "user_id", user.ID)
	return nil
}

// Authenticate verifies a session token and loads the user it names. Any
// failure collapses to ErrInvalidSession.
func (s *AuthService) Authenticate(ctx context.Context, rawToken string) (*model.User, error) {
	userID, err := s.VerifyJWT(rawToken)
	if err != nil {
		return nil, ErrInvalidSession
	}

	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Profile returns the public projection of a user.
func (s *AuthService) Profile(ctx context.Context, userID string) (*model.PublicUser, error) {
	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user.Public(), nil
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *AuthService) ComparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// GenerateToken returns a 256-bit random token, hex encoded.
func (s *AuthService) GenerateToken() (string, error) {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func (s *AuthService) GenerateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(s.jwtExpiry).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// VerifyJWT validates the signature and expiry and returns the user id the
// token carries. Expired or tampered tokens fail closed.
func (s *AuthService) VerifyJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("token missing user id")
	}

	return userID, nil
}
