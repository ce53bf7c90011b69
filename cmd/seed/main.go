// seed inserts a demo principal for local testing. Idempotent: skips when the demo email exists.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voice-journal/backend/internal/config"
	"voice-journal/backend/internal/db"
	"voice-journal/backend/internal/logger"
	"voice-journal/backend/internal/security"
	"voice-journal/backend/internal/user/domain"
	userrepo "voice-journal/backend/internal/user/repository"
)

const (
	demoUsername = "demo"
	demoEmail    = "demo@example.com"
	demoPassword = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := seed(ctx, cfg, log); err != nil {
		log.Error("seed failed", zap.Error(err))
		os.Exit(1)
	}
}

func seed(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer sqlDB.Close()
	users := userrepo.NewPostgresRepository(sqlDB)

	existing, err := users.GetByEmail(ctx, demoEmail)
	if err != nil {
		return err
	}
	if existing != nil {
		log.Info("demo user already present, skipping", zap.String("user_id", existing.ID))
		return nil
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash(demoPassword)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	u := &domain.User{
		ID:              uuid.NewString(),
		Username:        demoUsername,
		Email:           demoEmail,
		PasswordHash:    hash,
		IsActive:        true,
		CreatedAt:       now,
		MaxDailyRecords: cfg.DefaultMaxDailyRecords,
		LastRecordReset: now,
	}
	if err := users.Create(ctx, u); err != nil {
		return err
	}
	log.Info("seeded demo user", zap.String("user_id", u.ID), zap.String("email", demoEmail))
	return nil
}
