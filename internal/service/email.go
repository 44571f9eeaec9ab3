package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

// EmailService sends account emails through Resend. In development (or when no
// API key is configured) it logs the mail instead of sending it.
type EmailService struct {
	client      *resend.Client
	fromEmail   string
	clientURL   string
	appName     string
	resetExpiry time.Duration
	isDev       bool
}

func NewEmailService(apiKey, fromEmail, clientURL, appName string, resetExpiry time.Duration, isDev bool) *EmailService {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &EmailService{
		client:      client,
		fromEmail:   fromEmail,
		clientURL:   clientURL,
		appName:     appName,
		resetExpiry: resetExpiry,
		isDev:       isDev,
	}
}

func (s *EmailService) SendVerificationEmail(email, token, name string) error {
	verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.clientURL, token)
	subject, body := verificationEmailTemplate(name, verifyURL, s.appName)

	return s.send("verification", email, subject, body)
}

func (s *EmailService) SendPasswordResetEmail(email, token, name string) error {
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.clientURL, token)
	subject, body := passwordResetEmailTemplate(name, resetURL, s.appName, formatExpiry(s.resetExpiry))

	return s.send("password_reset", email, subject, body)
}

// formatExpiry renders a duration the way a human reads it in an email.
func formatExpiry(d time.Duration) string {
	if d >= time.Hour {
		hours := int(d.Round(time.Hour) / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

func (s *EmailService) SendWelcomeEmail(email, name string) error {
	subject, body := welcomeEmailTemplate(name, s.appName)

	return s.send("welcome", email, subject, body)
}

func (s *EmailService) send(kind, email, subject, body string) error {
	if s.isDev {
		slog.Info("email sent (dev mode)", "type", kind, "to", email, "subject", subject)
		return nil
	}

	if s.client == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{email},
		Subject: subject,
		Text:    body,
	}

	_, err := s.client.Emails.SendWithContext(context.Background(), params)
	if err == nil {
		slog.Info("email sent", "type", kind, "to", email)
	}
	return err
}
