package ports

import (
	"context"

	"github.com/crudkit/identity-api/internal/core/domain"
)

// Repository is the CRUD contract every persistence backend implements for
// an entity E, its create payload C and its sparse update payload U.
//
// Implementations must:
//   - return domain.ErrNotFound for missing ids or lookups with no match,
//   - return domain.ErrValidation for fields outside the entity allowlist,
//   - wrap storage/network failures with domain.ErrBackendUnavailable,
//   - commit every mutation immediately.
//
// Create is not trusted to reject duplicates; callers pre-check uniqueness.
type Repository[E any, C any, U any] interface {
	Get(ctx context.Context, id int64) (*E, error)
	GetByField(ctx context.Context, field domain.LookupField, value string) (*E, error)
	// List returns at most limit entities starting at offset. Ordering is
	// backend specific.
	List(ctx context.Context, offset, limit int) ([]*E, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, in C) (*E, error)
	Update(ctx context.Context, id int64, patch U) (*E, error)
	Remove(ctx context.Context, id int64) (*E, error)
}

// IdentityRepository is the Repository instantiation used for identities.
type IdentityRepository = Repository[domain.Identity, domain.NewIdentity, domain.IdentityPatch]

// Pinger is implemented by backends that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
