package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/urfave/cli/v3"

	"github.com/crudkit/identity-api/internal/api"
	"github.com/crudkit/identity-api/internal/core/ports"
	"github.com/crudkit/identity-api/internal/core/security"
	"github.com/crudkit/identity-api/internal/core/service"
	httpserver "github.com/crudkit/identity-api/internal/infrastructure/http"
	"github.com/crudkit/identity-api/internal/infrastructure/queue"
	"github.com/crudkit/identity-api/internal/pkg/config"
	"github.com/crudkit/identity-api/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := &cli.Command{
		Name:    "identity-api",
		Usage:   "User registration, authentication and administration service",
		Version: version,
		Commands: []*cli.Command{
			serveCommand(),
			createSuperuserCommand(),
			migrateCommand(),
		},
		Action: runServe,
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP API (default)",
		Action: runServe,
	}
}

func createSuperuserCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-superuser",
		Usage: "Create an administrator unless one with the email exists",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "defaults to FIRST_SUPERUSER"},
			&cli.StringFlag{Name: "username", Usage: "defaults to FIRST_SUPERUSER_USERNAME"},
			&cli.StringFlag{Name: "password", Usage: "defaults to FIRST_SUPERUSER_PASSWORD"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := setup(ctx)
			if err != nil {
				return err
			}
			email := firstNonEmpty(cmd.String("email"), cfg.Auth.FirstSuperuser)
			username := firstNonEmpty(cmd.String("username"), cfg.Auth.FirstSuperuserUsername)
			password := firstNonEmpty(cmd.String("password"), cfg.Auth.FirstSuperuserPassword)
			if email == "" || password == "" {
				return errors.New("create-superuser: email and password are required")
			}

			be, err := openBackend(ctx, cfg, true, log)
			if err != nil {
				return err
			}
			defer be.close(context.Background())

			tokens := security.NewTokenService(cfg.Auth.SecretKey, cfg.Auth.TokenTTL())
			identities := newIdentityService(cfg, be, tokens, log)
			created, err := identities.EnsureSuperuser(ctx, email, username, password)
			if err != nil {
				return err
			}
			if created {
				log.Info().Str("email", email).Msg("superuser created")
			} else {
				log.Info().Str("email", email).Msg("superuser already exists")
			}
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply SQL migrations or Mongo indexes for the configured backend",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := setup(ctx)
			if err != nil {
				return err
			}
			if cfg.Backend == config.BackendREST {
				return errors.New("migrate: the rest backend's schema is managed by the remote service")
			}
			be, err := openBackend(ctx, cfg, true, log)
			if err != nil {
				return err
			}
			log.Info().Str("backend", cfg.Backend).Msg("migrations applied")
			return be.close(context.Background())
		},
	}
}

func runServe(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	if cfg.Auth.GeneratedSecret {
		log.Warn().Msg("SECRET_KEY not set; using a random key, tokens will not survive a restart")
	}

	be, err := openBackend(ctx, cfg, true, log)
	if err != nil {
		return err
	}
	defer be.close(context.Background())

	sessions, err := openSessions(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sessions.close()

	tokens := security.NewTokenService(cfg.Auth.SecretKey, cfg.Auth.TokenTTL())
	identities := newIdentityService(cfg, be, tokens, log)
	resolver := service.NewAccessResolver(tokens, identities, sessions)
	admin := service.NewAdminService(identities, resolver, sessions, cfg.Admin.SessionTTL, logger.Component("admin"))

	if created, err := identities.EnsureSuperuser(ctx, cfg.Auth.FirstSuperuser, cfg.Auth.FirstSuperuserUsername, cfg.Auth.FirstSuperuserPassword); err != nil {
		return fmt.Errorf("bootstrap superuser: %w", err)
	} else if created {
		log.Info().Str("email", cfg.Auth.FirstSuperuser).Msg("first superuser created")
	}

	var purger service.SessionPurger
	if sessions.purger != nil {
		purger = sessions.purger
	}
	tasks := service.NewTaskService(cfg.Tasks.MaxRetries, purger, logger.Component("tasks"))
	dispatcher := queue.NewDispatcher(cfg.Tasks.Workers, tasks, logger.Component("queue"))
	dispatcher.Start(ctx)
	tasks.AttachQueue(dispatcher)

	health := map[string]ports.Pinger{cfg.Backend: be.repo}
	if sessions.pinger != nil {
		health["redis"] = sessions.pinger
	}

	router := api.NewRouter(api.Deps{
		Config:     cfg,
		Logger:     logger.Component("http"),
		Identities: identities,
		Resolver:   resolver,
		Admin:      admin,
		Tasks:      tasks,
		Health:     health,
		Version:    version,
	})

	return httpserver.NewServer(router, cfg.Port, log).Run(ctx)
}

// setup loads configuration and initialises the logger.
func setup(ctx context.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadContext(ctx, envconfig.OsLookuper())
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "identity-api",
	})
	log.Info().Str("env", cfg.Env).Str("backend", cfg.Backend).Msg("configuration loaded")
	return cfg, log, nil
}

func newIdentityService(cfg *config.Config, be *backend, tokens *security.TokenService, log zerolog.Logger) *service.IdentityService {
	return service.NewIdentityService(be.repo, security.NewHasher(cfg.Auth.BcryptCost), tokens, log.With().Str("component", "identity").Logger())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
