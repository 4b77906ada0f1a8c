package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

const DefaultSessionTTL = 24 * time.Hour

// DashboardStats summarises the identity set for the admin surfaces.
type DashboardStats struct {
	TotalUsers  int64 `json:"total_users"`
	ActiveUsers int64 `json:"active_users"`
	Superusers  int64 `json:"superusers"`
}

// AdminService backs both administrative surfaces: the bearer-token admin
// API and the session-based admin panel.
type AdminService struct {
	identities *IdentityService
	resolver   *AccessResolver
	sessions   ports.SessionStore
	sessionTTL time.Duration
	logger     zerolog.Logger
}

func NewAdminService(identities *IdentityService, resolver *AccessResolver, sessions ports.SessionStore, sessionTTL time.Duration, logger zerolog.Logger) *AdminService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &AdminService{
		identities: identities,
		resolver:   resolver,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// Login opens an admin panel session for an active, elevated identity.
func (s *AdminService) Login(ctx context.Context, login, password string) (*domain.AdminSession, *domain.Identity, error) {
	identity, err := s.identities.Authenticate(ctx, login, password)
	if err != nil {
		return nil, nil, err
	}
	if err := s.resolver.Authorize(identity, true); err != nil {
		return nil, nil, err
	}

	sess, err := s.sessions.Create(ctx, identity.ID, s.sessionTTL)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info().Int64("identity_id", identity.ID).Msg("admin session opened")
	return sess, identity, nil
}

// Logout destroys the session. Unknown ids are not an error.
func (s *AdminService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}

// SessionIdentity resolves and gates the identity behind a panel session.
func (s *AdminService) SessionIdentity(ctx context.Context, sessionID string) (*domain.Identity, error) {
	identity, err := s.resolver.ResolveFromSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Authorize(identity, true); err != nil {
		return nil, err
	}
	return identity, nil
}

// Dashboard walks the identity set page by page and counts role flags.
func (s *AdminService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	for offset := 0; ; offset += MaxPageLimit {
		page, err := s.identities.List(ctx, offset, MaxPageLimit)
		if err != nil {
			return nil, err
		}
		for _, id := range page {
			stats.TotalUsers++
			if id.IsActive {
				stats.ActiveUsers++
			}
			if id.IsSuperuser {
				stats.Superusers++
			}
		}
		if len(page) < MaxPageLimit {
			return &stats, nil
		}
	}
}

// SetActive toggles the active flag of target. It reports false without
// writing when the identity is already in the requested state.
func (s *AdminService) SetActive(ctx context.Context, actorID, targetID int64, active bool) (bool, error) {
	target, err := s.identities.Get(ctx, targetID)
	if err != nil {
		return false, err
	}
	if !active && actorID == targetID {
		return false, fmt.Errorf("%w: cannot deactivate your own account", domain.ErrForbidden)
	}
	if target.IsActive == active {
		return false, nil
	}
	if _, err := s.identities.Update(ports.WithActor(ctx, actorID), targetID, ports.UpdateIdentityInput{IsActive: &active}); err != nil {
		return false, err
	}
	return true, nil
}

// SetElevated grants or revokes the admin role of target.
func (s *AdminService) SetElevated(ctx context.Context, actorID, targetID int64, elevated bool) (bool, error) {
	target, err := s.identities.Get(ctx, targetID)
	if err != nil {
		return false, err
	}
	if !elevated && actorID == targetID {
		return false, fmt.Errorf("%w: cannot remove your own admin role", domain.ErrForbidden)
	}
	if target.IsSuperuser == elevated {
		return false, nil
	}
	if _, err := s.identities.Update(ports.WithActor(ctx, actorID), targetID, ports.UpdateIdentityInput{IsSuperuser: &elevated}); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes target permanently on behalf of actor.
func (s *AdminService) Delete(ctx context.Context, actorID, targetID int64) (*domain.Identity, error) {
	return s.identities.Remove(ports.WithActor(ctx, actorID), targetID)
}
