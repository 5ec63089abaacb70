package app

import (
	"context"
	"errors"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/account"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/config"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/db"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/logger"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/ratelimit"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/redis"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/session"
)

// Infra holds the durable collaborators. Without DATABASE_DSN or REDIS_ADDR
// the matching in-process implementation is used, which only suits a single
// development instance.
type Infra struct {
	Accounts account.Repository
	Sessions session.Backend
	Counter  ratelimit.Counter

	closers []func() error
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{}

	if cfg.DatabaseDSN != "" {
		database, err := db.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		infra.closers = append(infra.closers, database.Close)
		infra.Accounts = account.NewPostgresRepository(database)

		logger.Info("database ready", nil)
	} else {
		infra.Accounts = account.NewMemoryRepository()
		logger.Warn("DATABASE_DSN not set, accounts are kept in memory", nil)
	}

	if cfg.RedisAddr != "" {
		client, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.StoreTimeout)
		if err != nil {
			_ = infra.Close()
			return nil, err
		}
		infra.closers = append(infra.closers, client.Close)
		infra.Sessions = session.NewRedisBackend(client.Client)
		infra.Counter = ratelimit.NewRedisCounter(client.Client)

		logger.Info("redis ready", map[string]any{"addr": cfg.RedisAddr})
	} else {
		infra.Sessions = session.NewMemoryBackend()
		infra.Counter = ratelimit.NewMemoryCounter()
		logger.Warn("REDIS_ADDR not set, sessions and rate limits are per-process", nil)
	}

	if !cfg.IsDevelopment() && (cfg.DatabaseDSN == "" || cfg.RedisAddr == "") {
		_ = infra.Close()
		return nil, errors.New("app: DATABASE_DSN and REDIS_ADDR are required in production")
	}

	return infra, nil
}

// Close releases connections in reverse order of acquisition.
func (i *Infra) Close() error {
	var errs []error
	for n := len(i.closers) - 1; n >= 0; n-- {
		if err := i.closers[n](); err != nil {
			errs = append(errs, err)
		}
	}
	i.closers = nil
	return errors.Join(errs...)
}
