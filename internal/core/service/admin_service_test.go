package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

type stubSessions struct {
	mu   sync.Mutex
	rows map[string]*domain.AdminSession
}

func (s *stubSessions) Create(_ context.Context, identityID int64, ttl time.Duration) (*domain.AdminSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	sess := &domain.AdminSession{ID: uuid.NewString(), IdentityID: identityID, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	s.rows[sess.ID] = sess
	return sess, nil
}

func (s *stubSessions) Get(_ context.Context, id string) (*domain.AdminSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.rows[id]
	if !ok || sess.Expired(time.Now()) {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

func (s *stubSessions) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

type stubValidator map[string]int64

func (v stubValidator) Validate(token string) (int64, error) {
	id, ok := v[token]
	if !ok {
		return 0, errors.New("bad token")
	}
	return id, nil
}

func newTestAdmin(t *testing.T) (*AdminService, *IdentityService, *domain.Identity, *domain.Identity) {
	t.Helper()
	svc, _, _ := newTestIdentityService()
	elevated := true
	root, err := svc.Create(context.Background(), ports.CreateIdentityInput{Email: "root@x.io", Username: "root", Password: "pw", IsSuperuser: &elevated})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	user := mustCreate(t, svc, "u@x.io", "u", "pw")

	sessions := &stubSessions{rows: make(map[string]*domain.AdminSession)}
	resolver := NewAccessResolver(stubValidator{}, svc, sessions)
	return NewAdminService(svc, resolver, sessions, time.Hour, zerolog.Nop()), svc, root, user
}

func TestAdminService_LoginRequiresElevatedActive(t *testing.T) {
	admin, _, root, _ := newTestAdmin(t)
	ctx := context.Background()

	sess, got, err := admin.Login(ctx, "root", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != root.ID || sess.IdentityID != root.ID {
		t.Fatalf("session bound to %d", sess.IdentityID)
	}
	if _, err := admin.SessionIdentity(ctx, sess.ID); err != nil {
		t.Fatalf("session identity: %v", err)
	}

	if _, _, err := admin.Login(ctx, "u", "pw"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("plain user login: got %v, want ErrForbidden", err)
	}
	if _, _, err := admin.Login(ctx, "root", "nope"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("bad password: got %v", err)
	}

	if err := admin.Logout(ctx, sess.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := admin.SessionIdentity(ctx, sess.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("after logout: got %v, want ErrUnauthorized", err)
	}
}

func TestAdminService_ToggleIsIdempotent(t *testing.T) {
	admin, _, root, user := newTestAdmin(t)
	ctx := context.Background()

	changed, err := admin.SetActive(ctx, root.ID, user.ID, false)
	if err != nil || !changed {
		t.Fatalf("deactivate: changed=%v err=%v", changed, err)
	}
	changed, err = admin.SetActive(ctx, root.ID, user.ID, false)
	if err != nil || changed {
		t.Fatalf("deactivate again: changed=%v err=%v", changed, err)
	}
	changed, err = admin.SetElevated(ctx, root.ID, user.ID, true)
	if err != nil || !changed {
		t.Fatalf("make admin: changed=%v err=%v", changed, err)
	}

	if _, err := admin.SetActive(ctx, root.ID, root.ID, false); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("self-deactivate: got %v", err)
	}
	if _, err := admin.SetElevated(ctx, root.ID, root.ID, false); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("self-demote: got %v", err)
	}
	if _, err := admin.Delete(ctx, root.ID, root.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("self-delete: got %v", err)
	}
	if _, err := admin.SetActive(ctx, root.ID, 404, true); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing target: got %v", err)
	}
}

func TestAdminService_Dashboard(t *testing.T) {
	admin, svc, root, user := newTestAdmin(t)
	ctx := context.Background()
	if _, err := admin.SetActive(ctx, root.ID, user.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	mustCreate(t, svc, "v@x.io", "v", "pw")

	stats, err := admin.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	want := DashboardStats{TotalUsers: 3, ActiveUsers: 2, Superusers: 1}
	if *stats != want {
		t.Fatalf("stats = %+v, want %+v", *stats, want)
	}
}

func TestAccessResolver(t *testing.T) {
	svc, _, _ := newTestIdentityService()
	user := mustCreate(t, svc, "u@x.io", "u", "pw")
	resolver := NewAccessResolver(stubValidator{"good": user.ID, "ghost": 99}, svc, nil)
	ctx := context.Background()

	got, err := resolver.ResolveFromToken(ctx, "good")
	if err != nil || got.ID != user.ID {
		t.Fatalf("resolve: %v %v", got, err)
	}
	if _, err := resolver.ResolveFromToken(ctx, "bad"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("bad token: got %v", err)
	}
	if _, err := resolver.ResolveFromToken(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("deleted subject: got %v", err)
	}
	if _, err := resolver.ResolveFromSession(ctx, "anything"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("no session store: got %v", err)
	}

	if err := resolver.Authorize(got, true); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("elevated gate: got %v", err)
	}
	got.IsActive = false
	if err := resolver.Authorize(got, false); !errors.Is(err, domain.ErrInactiveAccount) {
		t.Fatalf("active gate: got %v", err)
	}
}
