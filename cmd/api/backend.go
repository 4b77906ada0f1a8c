package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
	"github.com/crudkit/identity-api/internal/infrastructure/db/instrumented"
	mongorepo "github.com/crudkit/identity-api/internal/infrastructure/db/mongo"
	redisstore "github.com/crudkit/identity-api/internal/infrastructure/db/redis"
	"github.com/crudkit/identity-api/internal/infrastructure/db/rest"
	sqlrepo "github.com/crudkit/identity-api/internal/infrastructure/db/sql"
	"github.com/crudkit/identity-api/internal/infrastructure/session"
	"github.com/crudkit/identity-api/internal/pkg/config"
)

// backend is the opened identity repository plus its teardown.
type backend struct {
	repo  *instrumented.Repository[domain.Identity, domain.NewIdentity, domain.IdentityPatch]
	close func(ctx context.Context) error
}

// openBackend connects the repository selected by BACKEND. When migrate is
// true the schema (SQL) or indexes (Mongo) are brought up to date first.
func openBackend(ctx context.Context, cfg *config.Config, migrate bool, log zerolog.Logger) (*backend, error) {
	switch cfg.Backend {
	case config.BackendSQL:
		db, err := sqlrepo.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := sqlrepo.RunMigrations(ctx, db, cfg.SQL.Driver); err != nil {
				_ = sqlrepo.Close(db)
				return nil, err
			}
		}
		log.Info().Str("driver", cfg.SQL.Driver).Msg("sql backend ready")
		return &backend{
			repo:  wrap(sqlrepo.NewIdentityRepository(db), config.BackendSQL),
			close: func(context.Context) error { return sqlrepo.Close(db) },
		}, nil

	case config.BackendMongo:
		client, db, err := mongorepo.Connect(ctx, mongorepo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		repo := mongorepo.NewIdentityRepository(db)
		if migrate {
			if err := repo.EnsureIndexes(ctx); err != nil {
				_ = client.Disconnect(ctx)
				return nil, err
			}
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("mongo backend ready")
		return &backend{
			repo:  wrap(repo, config.BackendMongo),
			close: client.Disconnect,
		}, nil

	case config.BackendREST:
		client := rest.NewClient(cfg.REST.URL, cfg.REST.Key, cfg.REST.Timeout)
		log.Info().Str("url", cfg.REST.URL).Str("table", cfg.REST.Table).Msg("rest backend ready")
		return &backend{
			repo:  wrap(rest.NewIdentityRepository(client, cfg.REST.Table), config.BackendREST),
			close: func(context.Context) error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func wrap(repo ports.IdentityRepository, name string) *instrumented.Repository[domain.Identity, domain.NewIdentity, domain.IdentityPatch] {
	return instrumented.Wrap(repo, name)
}

// sessionStore is the admin session store plus the pieces that only some
// implementations provide.
type sessionStore struct {
	ports.SessionStore
	// purger is set for the memory store, whose expired entries are only
	// dropped on access or by the cleanup task.
	purger *session.MemoryStore
	pinger ports.Pinger
	close  func() error
}

// openSessions uses Redis when REDIS_ADDR is set and process memory otherwise.
func openSessions(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*sessionStore, error) {
	if cfg.Redis.Addr == "" {
		log.Info().Msg("admin sessions kept in memory")
		mem := session.NewMemoryStore()
		return &sessionStore{SessionStore: mem, purger: mem, close: func() error { return nil }}, nil
	}

	client, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return nil, err
	}
	store := redisstore.NewSessionStore(client)
	log.Info().Str("addr", cfg.Redis.Addr).Msg("admin sessions kept in redis")
	return &sessionStore{SessionStore: store, pinger: store, close: client.Close}, nil
}
