package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"voice-journal/backend/internal/config"
	"voice-journal/backend/internal/db"
	healthhandler "voice-journal/backend/internal/health/handler"
	sessionrepo "voice-journal/backend/internal/session/repository"
	"voice-journal/backend/internal/session/touch"
	"voice-journal/backend/internal/store/memory"
	userrepo "voice-journal/backend/internal/user/repository"
)

// storage is the selected principal store, session ledger and touch gate.
type storage struct {
	users    userrepo.Repository
	sessions sessionrepo.Repository
	tx       db.Transactor
	gate     touch.Gate
	pinger   healthhandler.Pinger
	closers  []func() error
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// openStorage uses Postgres when DATABASE_URL is set and the in-memory store otherwise.
// With REDIS_URL set the touch debounce window is shared across processes.
func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (*storage, error) {
	st := &storage{}
	if cfg.DatabaseURL != "" {
		sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		st.closers = append(st.closers, sqlDB.Close)
		st.users = userrepo.NewPostgresRepository(sqlDB)
		st.sessions = sessionrepo.NewPostgresRepository(sqlDB)
		st.tx = db.NewTransactor(sqlDB)
		st.pinger = sqlDB
		log.Info("storage: postgres")
	} else {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("database: DATABASE_URL is required in production")
		}
		mem := memory.New()
		st.users = mem.Users()
		st.sessions = mem.Sessions()
		st.tx = mem
		log.Warn("storage: in-memory, data is lost on restart")
	}

	if cfg.RedisURL != "" && cfg.TouchInterval() > 0 {
		client, err := db.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		st.closers = append(st.closers, client.Close)
		st.gate = touch.NewRedisGate(client, cfg.TouchInterval(), log.Named("touch"))
	} else {
		st.gate = touch.New(cfg.TouchInterval())
	}
	return st, nil
}
