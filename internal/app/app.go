package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sounduoex/accounts/internal/config"
	"github.com/sounduoex/accounts/internal/db"
	"github.com/sounduoex/accounts/internal/repository"
	"github.com/sounduoex/accounts/internal/service"
)

type App struct {
	Cfg          *config.Config
	DB           *sqlx.DB
	AuthService  *service.AuthService
	EmailService *service.EmailService
	TokenSweeper *service.TokenSweeper
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection, db.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Repositories
	userRepository := repository.NewUserRepository(database)

	// Services
	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.ClientURL,
		cfg.AppName,
		cfg.ResetTokenExpiry,
		cfg.IsDevelopment(),
	)
	authService := service.NewAuthService(
		userRepository,
		emailService,
		cfg.JWTSecret,
		cfg.JWTExpiry,
		cfg.ResetTokenExpiry,
		cfg.BcryptCost,
	)
	tokenSweeper := service.NewTokenSweeper(userRepository, cfg.TokenSweepSchedule)

	err = tokenSweeper.Start()
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to start token sweeper: %v", err)
	}

	return &App{
		Cfg:          cfg,
		DB:           database,
		AuthService:  authService,
		EmailService: emailService,
		TokenSweeper: tokenSweeper,
	}, nil
}

func (a *App) Close() error {
	if a.TokenSweeper != nil {
		a.TokenSweeper.Stop()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
