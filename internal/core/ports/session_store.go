package ports

import (
	"context"
	"time"

	"github.com/crudkit/identity-api/internal/core/domain"
)

// SessionStore keeps admin panel sessions server-side.
// Get returns domain.ErrNotFound for unknown or expired ids.
type SessionStore interface {
	Create(ctx context.Context, identityID int64, ttl time.Duration) (*domain.AdminSession, error)
	Get(ctx context.Context, id string) (*domain.AdminSession, error)
	Delete(ctx context.Context, id string) error
}
