package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sounduoex/accounts/internal/repository"
)

// TokenSweeper periodically clears expired reset tokens. Expired tokens never
// validate regardless; this keeps the table tidy.
type TokenSweeper struct {
	userRepository repository.UserRepository
	schedule       string
	cron           *cron.Cron
}

func NewTokenSweeper(userRepository repository.UserRepository, schedule string) *TokenSweeper {
	return &TokenSweeper{
		userRepository: userRepository,
		schedule:       schedule,
		cron:           cron.New(),
	}
}

func (s *TokenSweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.sweep)
	if err != nil {
		return err
	}

	s.cron.Start()
	slog.Info("token sweeper started", "schedule", s.schedule)
	return nil
}

func (s *TokenSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *TokenSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.userRepository.ClearExpiredResetTokens(ctx)
	if err != nil {
		slog.Error("token sweep failed", "error", err)
		return
	}

	if n > 0 {
		slog.Info("expired reset tokens cleared", "count", n)
	}
}
