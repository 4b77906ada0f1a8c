package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crudkit/identity-api/internal/core/domain"
)

const defaultTimeout = 5 * time.Second

// Config addresses the Redis instance holding admin sessions.
type Config struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

// Connect returns a client after a successful ping. Dial, read and write
// deadlines all use Timeout so a stalled server surfaces as
// domain.ErrBackendUnavailable instead of hanging a request.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, domain.Unavailable("redis ping", err)
	}

	return client, nil
}
