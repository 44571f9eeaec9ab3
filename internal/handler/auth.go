package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sounduoex/accounts/internal/ctxkeys"
	"github.com/sounduoex/accounts/internal/model"
	"github.com/sounduoex/accounts/internal/service"
)

type authHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *authHandler {
	return &authHandler{authService: authService}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string            `json:"token"`
	User  *model.PublicUser `json:"user"`
}

func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.authService.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailAlreadyExists):
			respondError(w, http.StatusConflict, "email already in use")
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("registration failed", "error", err)
			respondError(w, http.StatusInternalServerError, "error creating user")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful. Please check your email to verify your account.",
		"user":    user,
	})
}

func (h *authHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	_, err := h.authService.VerifyEmail(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			respondError(w, http.StatusBadRequest, "invalid verification token")
			return
		}
		slog.Error("email verification failed", "error", err)
		respondError(w, http.StatusInternalServerError, "error verifying email")
		return
	}

	respondMessage(w, http.StatusOK, "Email verified successfully")
}

func (h *authHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = h.authService.ResendVerification(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrInvalidEmail) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("verification resend failed", "error", err)
		respondError(w, http.StatusInternalServerError, "error resending verification")
		return
	}

	respondMessage(w, http.StatusOK, "If the account exists, a verification email has been sent")
}

func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, service.ErrEmailNotVerified):
			respondError(w, http.StatusForbidden, "email not verified")
		default:
			slog.Error("login failed", "error", err)
			respondError(w, http.StatusInternalServerError, "error during login")
		}
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (h *authHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = h.authService.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrInvalidEmail) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("forgot password failed", "error", err)
		respondError(w, http.StatusInternalServerError, "error processing password reset")
		return
	}

	// Always the same outward signal, whether or not the account exists
	respondMessage(w, http.StatusOK, "If the account exists, a password reset email has been sent")
}

func (h *authHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = h.authService.ResetPassword(r.Context(), req.Token, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidToken):
			respondError(w, http.StatusBadRequest, "invalid or expired reset token")
		case errors.Is(err, service.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("password reset failed", "error", err)
			respondError(w, http.StatusInternalServerError, "error resetting password")
		}
		return
	}

	respondMessage(w, http.StatusOK, "Password reset successful")
}

func (h *authHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"user": user.Public()})
}
