package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jf-navica/hydroqc-ha/internal/adapters/driven/memory"
	"github.com/jf-navica/hydroqc-ha/internal/adapters/driven/postgres"
	redisadapter "github.com/jf-navica/hydroqc-ha/internal/adapters/driven/redis"
	"github.com/jf-navica/hydroqc-ha/internal/config"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
)

// Backend names reported in the runtime config
const (
	backendMemory   = "memory"
	backendPostgres = "postgres"
	backendRedis    = "redis"
)

// backends holds the driven stores chosen from the storage configuration
type backends struct {
	state       driven.StateStore
	calendar    driven.CalendarStore
	consumption driven.ConsumptionStore
	lock        driven.DistributedLock

	stateBackend string
	lockBackend  string

	closers []func() error
}

// openBackends connects the configured databases. PostgreSQL holds the
// history tables; Redis, when present, takes over state and locking.
// Anything left unset falls back to memory.
func openBackends(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*backends, error) {
	b := &backends{
		state:        memory.NewStateStore(),
		calendar:     memory.NewCalendarStore(),
		consumption:  memory.NewConsumptionStore(),
		lock:         memory.NewLock(time.Now),
		stateBackend: backendMemory,
		lockBackend:  backendMemory,
	}

	if cfg.DatabaseURL != "" {
		logger.Info("connecting to PostgreSQL")
		dbCfg := postgres.DefaultConfig(cfg.DatabaseURL)
		if cfg.MaxOpenConns > 0 {
			dbCfg.MaxOpenConns = cfg.MaxOpenConns
		}
		if cfg.MaxIdleConns > 0 {
			dbCfg.MaxIdleConns = cfg.MaxIdleConns
		}
		if cfg.ConnMaxLifetime > 0 {
			dbCfg.ConnMaxLifetime = cfg.ConnMaxLifetime
		}
		db, err := postgres.Connect(ctx, dbCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		b.closers = append(b.closers, db.Close)

		if err := db.InitSchema(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}

		b.state = postgres.NewStateStore(db)
		b.calendar = postgres.NewCalendarStore(db)
		b.consumption = postgres.NewConsumptionStore(db)
		b.lock = postgres.NewAdvisoryLock(db)
		b.stateBackend = backendPostgres
		b.lockBackend = backendPostgres
		logger.Info("PostgreSQL connected and schema initialized")
	}

	if cfg.RedisURL != "" {
		logger.Info("connecting to Redis")
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		b.closers = append(b.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}

		b.state = redisadapter.NewStateStore(client)
		b.lock = redisadapter.NewLock(client)
		b.stateBackend = backendRedis
		b.lockBackend = backendRedis
		logger.Info("Redis connected")
	}

	return b, nil
}

// Close releases connections in reverse order of opening
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			slog.Warn("failed to close backend", "error", err)
		}
	}
	b.closers = nil
}
