// Package storage opens the activity repository and session store selected by config.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cdriehuys/timetracker/internal/config"
	"github.com/cdriehuys/timetracker/internal/domain"
	"github.com/cdriehuys/timetracker/internal/persistence/postgres"
	"github.com/cdriehuys/timetracker/internal/persistence/sqlite"
	"github.com/cdriehuys/timetracker/internal/session"
)

// Purger removes expired sessions from stores that do not expire them on their own.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Stores bundles the opened backends. Close releases all of them.
type Stores struct {
	Activities domain.ActivityRepository
	Sessions   session.Store
	// Purger is nil when the session store expires keys itself.
	Purger Purger
	// Pool is set when StoreDriver is postgres; the outbox relay shares it.
	Pool *pgxpool.Pool

	db      *sql.DB
	redis   *goredis.Client
	migrate func(context.Context) error
}

// Open connects to the configured backends without touching the schema.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Stores, error) {
	s := &Stores{}

	switch cfg.StoreDriver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		s.Pool = pool

		var opts []postgres.Option
		if cfg.OutboxEnabled {
			opts = append(opts, postgres.WithOutbox(cfg.OutboxTopic))
		}
		s.Activities = postgres.NewRepository(pool, opts...)
		store := postgres.NewSessionStore(pool)
		s.Sessions, s.Purger = store, store
		s.migrate = func(ctx context.Context) error { return postgres.Migrate(ctx, pool) }

	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		s.db = db
		s.Activities = sqlite.NewRepository(db)
		store := sqlite.NewSessionStore(db)
		s.Sessions, s.Purger = store, store
		s.migrate = func(ctx context.Context) error { return sqlite.Migrate(ctx, db) }

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}

	if cfg.SessionStore == "redis" {
		rdb, err := session.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.redis = rdb
		s.Sessions = session.NewRedisStore(rdb)
		s.Purger = nil
	}

	logger.Info().
		Str("store_driver", cfg.StoreDriver).
		Str("session_store", cfg.SessionStore).
		Bool("outbox_enabled", cfg.OutboxEnabled).
		Msg("storage opened")
	return s, nil
}

// Migrate applies the relational schema.
func (s *Stores) Migrate(ctx context.Context) error {
	return s.migrate(ctx)
}

// Close releases every connection held by s.
func (s *Stores) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}
