package ports

import (
	"context"

	"github.com/crudkit/identity-api/internal/core/domain"
)

// CreateIdentityInput carries a registration or administrative create.
type CreateIdentityInput struct {
	Email       string  `json:"email"        validate:"required,email"`
	Username    string  `json:"username"     validate:"required,min=1,max=64"`
	FullName    *string `json:"full_name"`
	Password    string  `json:"password"     validate:"required,min=1,max=72"`
	IsActive    *bool   `json:"is_active"`
	IsSuperuser *bool   `json:"is_superuser"`
}

// UpdateIdentityInput is a sparse update. Password is plaintext and is
// hashed by the service before it reaches a repository.
type UpdateIdentityInput struct {
	Email       *string `json:"email"        validate:"omitempty,email"`
	Username    *string `json:"username"     validate:"omitempty,min=1,max=64"`
	FullName    *string `json:"full_name"`
	Password    *string `json:"password"     validate:"omitempty,min=1,max=72"`
	IsActive    *bool   `json:"is_active"`
	IsSuperuser *bool   `json:"is_superuser"`
}

// IdentityService is the use-case surface the HTTP layer depends on.
type IdentityService interface {
	Get(ctx context.Context, id int64) (*domain.Identity, error)
	List(ctx context.Context, offset, limit int) ([]*domain.Identity, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, in CreateIdentityInput) (*domain.Identity, error)
	Update(ctx context.Context, id int64, in UpdateIdentityInput) (*domain.Identity, error)
	Remove(ctx context.Context, id int64) (*domain.Identity, error)
	Authenticate(ctx context.Context, login, password string) (*domain.Identity, error)
	IssueAccessToken(id int64) (*domain.AccessToken, error)
	IsActive(identity *domain.Identity) bool
	IsElevated(identity *domain.Identity) bool
}

type actorKey struct{}

// WithActor returns a context carrying the id of the identity performing
// the request.
func WithActor(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, actorKey{}, id)
}

// ActorFromContext returns the acting identity id, if any.
func ActorFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(actorKey{}).(int64)
	return id, ok && id > 0
}
