package instrumented

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/crudkit/identity-api/internal/api/metrics"
	"github.com/crudkit/identity-api/internal/core/domain"
)

type fakeRepo struct {
	getErr error
}

func (f *fakeRepo) Get(context.Context, int64) (*domain.Identity, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &domain.Identity{ID: 1}, nil
}

func (f *fakeRepo) GetByField(context.Context, domain.LookupField, string) (*domain.Identity, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeRepo) List(context.Context, int, int) ([]*domain.Identity, error) { return nil, nil }
func (f *fakeRepo) Count(context.Context) (int64, error)                       { return 0, nil }

func (f *fakeRepo) Create(context.Context, domain.NewIdentity) (*domain.Identity, error) {
	return nil, domain.NewConflict(domain.FieldEmail)
}

func (f *fakeRepo) Update(context.Context, int64, domain.IdentityPatch) (*domain.Identity, error) {
	return nil, domain.Unavailable("update", errors.New("boom"))
}

func (f *fakeRepo) Remove(context.Context, int64) (*domain.Identity, error) {
	return nil, fmt.Errorf("unexpected")
}

func TestRepository_CountsResults(t *testing.T) {
	backend := "test-" + t.Name()
	repo := Wrap[domain.Identity, domain.NewIdentity, domain.IdentityPatch](&fakeRepo{}, backend)
	ctx := context.Background()

	if got, err := repo.Get(ctx, 1); err != nil || got.ID != 1 {
		t.Fatalf("get passthrough: %v %v", got, err)
	}
	_, _ = repo.GetByField(ctx, domain.FieldEmail, "x")
	_, _ = repo.Create(ctx, domain.NewIdentity{})
	_, _ = repo.Update(ctx, 1, domain.IdentityPatch{})
	_, _ = repo.Remove(ctx, 1)

	cases := []struct{ op, result string }{
		{"get", "ok"},
		{"get_by_field", "not_found"},
		{"create", "conflict"},
		{"update", "unavailable"},
		{"remove", "error"},
	}
	for _, c := range cases {
		got := testutil.ToFloat64(metrics.RepositoryOpsTotal.WithLabelValues(backend, c.op, c.result))
		if got != 1 {
			t.Errorf("%s/%s = %v, want 1", c.op, c.result, got)
		}
	}
}

func TestRepository_PingWithoutPinger(t *testing.T) {
	repo := Wrap[domain.Identity, domain.NewIdentity, domain.IdentityPatch](&fakeRepo{}, "nop")
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
