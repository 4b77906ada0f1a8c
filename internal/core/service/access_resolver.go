package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

// TokenValidator returns the subject id carried by a valid bearer token.
type TokenValidator interface {
	Validate(token string) (int64, error)
}

// IdentityGetter loads an identity by id.
type IdentityGetter interface {
	Get(ctx context.Context, id int64) (*domain.Identity, error)
}

// AccessResolver derives the current identity from a bearer token or an
// admin session and applies the active/elevated gates. One resolver serves
// whichever repository backend is configured.
type AccessResolver struct {
	tokens     TokenValidator
	identities IdentityGetter
	sessions   ports.SessionStore
}

func NewAccessResolver(tokens TokenValidator, identities IdentityGetter, sessions ports.SessionStore) *AccessResolver {
	return &AccessResolver{tokens: tokens, identities: identities, sessions: sessions}
}

// ValidateToken checks a bearer token and returns its subject id.
func (r *AccessResolver) ValidateToken(token string) (int64, error) {
	id, err := r.tokens.Validate(token)
	if err != nil {
		return 0, domain.ErrUnauthorized
	}
	return id, nil
}

// ResolveFromToken validates token and loads the identity it names.
func (r *AccessResolver) ResolveFromToken(ctx context.Context, token string) (*domain.Identity, error) {
	id, err := r.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return r.ResolveSubject(ctx, id)
}

// ResolveSubject loads the identity for an already validated subject id.
func (r *AccessResolver) ResolveSubject(ctx context.Context, id int64) (*domain.Identity, error) {
	identity, err := r.identities.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("user %w", domain.ErrNotFound)
		}
		return nil, err
	}
	return identity, nil
}

// ResolveFromSession loads the identity stored in an admin session. Unknown
// or expired sessions are unauthorized.
func (r *AccessResolver) ResolveFromSession(ctx context.Context, sessionID string) (*domain.Identity, error) {
	if sessionID == "" || r.sessions == nil {
		return nil, domain.ErrUnauthorized
	}
	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	return r.ResolveSubject(ctx, sess.IdentityID)
}

func (r *AccessResolver) RequireActive(identity *domain.Identity) error {
	if identity == nil || !identity.IsActive {
		return domain.ErrInactiveAccount
	}
	return nil
}

func (r *AccessResolver) RequireElevated(identity *domain.Identity) error {
	if identity == nil || !identity.IsSuperuser {
		return domain.ErrForbidden
	}
	return nil
}

// Authorize runs the active gate and, when elevated is set, the role gate.
func (r *AccessResolver) Authorize(identity *domain.Identity, elevated bool) error {
	if err := r.RequireActive(identity); err != nil {
		return err
	}
	if elevated {
		return r.RequireElevated(identity)
	}
	return nil
}
