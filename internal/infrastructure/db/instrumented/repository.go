// Package instrumented decorates a repository with Prometheus metrics.
package instrumented

import (
	"context"
	"errors"
	"time"

	"github.com/crudkit/identity-api/internal/api/metrics"
	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

// Repository counts and times every call on the wrapped backend.
type Repository[E any, C any, U any] struct {
	next    ports.Repository[E, C, U]
	backend string
}

// Wrap returns next instrumented under the given backend label.
func Wrap[E any, C any, U any](next ports.Repository[E, C, U], backend string) *Repository[E, C, U] {
	return &Repository[E, C, U]{next: next, backend: backend}
}

func (r *Repository[E, C, U]) Get(ctx context.Context, id int64) (e *E, err error) {
	defer r.observe("get", time.Now(), &err)
	return r.next.Get(ctx, id)
}

func (r *Repository[E, C, U]) GetByField(ctx context.Context, field domain.LookupField, value string) (e *E, err error) {
	defer r.observe("get_by_field", time.Now(), &err)
	return r.next.GetByField(ctx, field, value)
}

func (r *Repository[E, C, U]) List(ctx context.Context, offset, limit int) (es []*E, err error) {
	defer r.observe("list", time.Now(), &err)
	return r.next.List(ctx, offset, limit)
}

func (r *Repository[E, C, U]) Count(ctx context.Context) (n int64, err error) {
	defer r.observe("count", time.Now(), &err)
	return r.next.Count(ctx)
}

func (r *Repository[E, C, U]) Create(ctx context.Context, in C) (e *E, err error) {
	defer r.observe("create", time.Now(), &err)
	return r.next.Create(ctx, in)
}

func (r *Repository[E, C, U]) Update(ctx context.Context, id int64, patch U) (e *E, err error) {
	defer r.observe("update", time.Now(), &err)
	return r.next.Update(ctx, id, patch)
}

func (r *Repository[E, C, U]) Remove(ctx context.Context, id int64) (e *E, err error) {
	defer r.observe("remove", time.Now(), &err)
	return r.next.Remove(ctx, id)
}

// Ping forwards to the backend when it can report connectivity.
func (r *Repository[E, C, U]) Ping(ctx context.Context) error {
	if p, ok := r.next.(ports.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (r *Repository[E, C, U]) observe(op string, start time.Time, errp *error) {
	metrics.RepositoryDuration.WithLabelValues(r.backend, op).Observe(time.Since(start).Seconds())
	metrics.RepositoryOpsTotal.WithLabelValues(r.backend, op, Result(*errp)).Inc()
}

// Result classifies err into the result label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrBackendUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
