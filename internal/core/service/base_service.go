package service

import (
	"context"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 100
)

// BaseService layers existence checks over any Repository. Entity-specific
// services embed it and add their own rules.
type BaseService[E any, C any, U any] struct {
	repo ports.Repository[E, C, U]
}

func NewBaseService[E any, C any, U any](repo ports.Repository[E, C, U]) *BaseService[E, C, U] {
	return &BaseService[E, C, U]{repo: repo}
}

func (s *BaseService[E, C, U]) Get(ctx context.Context, id int64) (*E, error) {
	if id <= 0 {
		return nil, domain.ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

func (s *BaseService[E, C, U]) GetByField(ctx context.Context, field domain.LookupField, value string) (*E, error) {
	return s.repo.GetByField(ctx, field, value)
}

// List clamps the window to [0, MaxPageLimit] before delegating.
func (s *BaseService[E, C, U]) List(ctx context.Context, offset, limit int) ([]*E, error) {
	offset, limit = ClampPage(offset, limit)
	return s.repo.List(ctx, offset, limit)
}

func (s *BaseService[E, C, U]) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

func (s *BaseService[E, C, U]) Create(ctx context.Context, in C) (*E, error) {
	return s.repo.Create(ctx, in)
}

// Update loads the entity first so a missing id is reported as NotFound
// before any write is attempted.
func (s *BaseService[E, C, U]) Update(ctx context.Context, id int64, patch U) (*E, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, patch)
}

func (s *BaseService[E, C, U]) Remove(ctx context.Context, id int64) (*E, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Remove(ctx, id)
}

// ClampPage normalises a skip/limit pair.
func ClampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return offset, limit
}
