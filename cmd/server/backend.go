package main

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-session-auth/internal/config"
	"github.com/jrsteele09/go-session-auth/server"
	"github.com/jrsteele09/go-session-auth/sessions"
	fakesessionrepo "github.com/jrsteele09/go-session-auth/sessions/repofake"
	"github.com/jrsteele09/go-session-auth/store"
	"github.com/jrsteele09/go-session-auth/store/postgres"
	"github.com/jrsteele09/go-session-auth/store/redis"
	"github.com/jrsteele09/go-session-auth/store/sqlite"
	"github.com/jrsteele09/go-session-auth/token/blacklist"
	blacklistrepofake "github.com/jrsteele09/go-session-auth/token/blacklist/repofake"
	"github.com/jrsteele09/go-session-auth/users"
	fakeuserrepo "github.com/jrsteele09/go-session-auth/users/repofake"
	"github.com/rs/zerolog/log"
)

// backend is the storage the service runs on, chosen by STORAGE_DRIVER.
type backend struct {
	users     users.Repo
	sessions  sessions.Repo
	blacklist blacklist.Repo
	tx        store.Transactor
	health    []server.HealthCheck
	closers   []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func (b *backend) healthChecks() []server.Option {
	opts := make([]server.Option, 0, len(b.health))
	for _, h := range b.health {
		opts = append(opts, server.WithHealthCheck(h))
	}
	return opts
}

func openBackend(ctx context.Context, c config.Config) (*backend, error) {
	b := &backend{}

	switch c.GetStorageDriver() {
	case config.DriverPostgres:
		if c.GetMigrateOnStart() {
			if err := postgres.Migrate(c.GetDatabaseURL(), "up"); err != nil {
				return nil, fmt.Errorf("postgres.Migrate: %w", err)
			}
		}
		db, err := postgres.Open(ctx, c.GetDatabaseURL(), c.GetDBMaxConns())
		if err != nil {
			return nil, fmt.Errorf("postgres.Open: %w", err)
		}
		b.users = postgres.NewUserRepo(db)
		b.sessions = postgres.NewSessionRepo(db)
		b.blacklist = postgres.NewBlacklistRepo(db)
		b.tx = db
		b.health = append(b.health, db.Ping)
		b.closers = append(b.closers, db.Close)

	case config.DriverSQLite:
		db, err := sqlite.Open(c.GetSQLitePath())
		if err != nil {
			return nil, fmt.Errorf("sqlite.Open: %w", err)
		}
		b.closers = append(b.closers, func() { _ = db.Close() })
		if c.GetMigrateOnStart() {
			if err := sqlite.Migrate(db, "up"); err != nil {
				b.close()
				return nil, fmt.Errorf("sqlite.Migrate: %w", err)
			}
		}
		b.users = sqlite.NewUserRepo(db)
		b.sessions = sqlite.NewSessionRepo(db)
		b.blacklist = sqlite.NewBlacklistRepo(db)
		b.tx = db
		b.health = append(b.health, db.Ping)

	default:
		log.Warn().Msg("Using in-memory storage; sessions are lost on restart")
		b.users = fakeuserrepo.NewFakeUserRepo()
		b.sessions = fakesessionrepo.NewFakeSessionRepo()
		b.blacklist = blacklistrepofake.NewFakeBlacklistRepo()
		b.tx = store.NoTx{}
	}

	// A Redis blacklist takes over from the SQL one. Its writes are outside the
	// SQL transaction: a failed session update after a successful claim leaves
	// the token spent, and the user logs in again.
	if url := c.GetRedisURL(); url != "" {
		client, err := redis.Connect(ctx, url)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("redis.Connect: %w", err)
		}
		b.blacklist = redis.NewBlacklistRepo(client)
		b.health = append(b.health, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		b.closers = append(b.closers, func() { _ = client.Close() })
	}

	log.Info().Str("driver", c.GetStorageDriver()).Bool("redis_blacklist", c.GetRedisURL() != "").Msg("Storage ready")
	return b, nil
}
