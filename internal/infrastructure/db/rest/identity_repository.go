package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

const DefaultTable = "users"

type identityRow struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	FullName       *string   `json:"full_name"`
	HashedPassword string    `json:"hashed_password"`
	IsActive       bool      `json:"is_active"`
	IsSuperuser    bool      `json:"is_superuser"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (r identityRow) toDomain() *domain.Identity {
	return &domain.Identity{
		ID:             r.ID,
		Email:          r.Email,
		Username:       r.Username,
		FullName:       r.FullName,
		HashedPassword: r.HashedPassword,
		IsActive:       r.IsActive,
		IsSuperuser:    r.IsSuperuser,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// IdentityRepository keeps identities in a remote table. The remote store is
// expected to assign ids and enforce unique email and username columns.
type IdentityRepository struct {
	client *Client
	table  string
}

var (
	_ ports.IdentityRepository = (*IdentityRepository)(nil)
	_ ports.Pinger             = (*IdentityRepository)(nil)
)

func NewIdentityRepository(client *Client, table string) *IdentityRepository {
	if table == "" {
		table = DefaultTable
	}
	return &IdentityRepository{client: client, table: table}
}

func (r *IdentityRepository) Get(ctx context.Context, id int64) (*domain.Identity, error) {
	return r.one(ctx, "get identity", url.Values{"id": {eq(strconv.FormatInt(id, 10))}})
}

func (r *IdentityRepository) GetByField(ctx context.Context, field domain.LookupField, value string) (*domain.Identity, error) {
	if !domain.ValidIdentityField(field) {
		return nil, domain.ErrValidation
	}
	return r.one(ctx, "get identity by "+string(field), url.Values{string(field): {eq(value)}})
}

// List returns identities ordered by id.
func (r *IdentityRepository) List(ctx context.Context, offset, limit int) ([]*domain.Identity, error) {
	q := url.Values{
		"select": {"*"},
		"order":  {"id.asc"},
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}
	rows, err := r.rows(ctx, "list identities", request{method: http.MethodGet, query: q})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Identity, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *IdentityRepository) Count(ctx context.Context) (int64, error) {
	resp, err := r.client.do(ctx, request{
		method: http.MethodGet,
		table:  r.table,
		query:  url.Values{"select": {"id"}, "limit": {"1"}},
		prefer: []string{"count=exact"},
	})
	if err != nil {
		return 0, domain.Unavailable("count identities", err)
	}
	n, err := total(resp.contentRange)
	if err != nil {
		return 0, domain.Unavailable("count identities", err)
	}
	return n, nil
}

func (r *IdentityRepository) Create(ctx context.Context, in domain.NewIdentity) (*domain.Identity, error) {
	body := map[string]any{
		"email":           in.Email,
		"username":        in.Username,
		"full_name":       in.FullName,
		"hashed_password": in.HashedPassword,
		"is_active":       in.IsActive,
		"is_superuser":    in.IsSuperuser,
	}
	rows, err := r.rows(ctx, "create identity", request{
		method: http.MethodPost,
		body:   body,
		prefer: []string{"return=representation"},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.Unavailable("create identity", errors.New("empty representation"))
	}
	return rows[0].toDomain(), nil
}

// Update sends only the fields present in patch.
func (r *IdentityRepository) Update(ctx context.Context, id int64, patch domain.IdentityPatch) (*domain.Identity, error) {
	body := patchBody(patch)
	if len(body) == 0 {
		return r.Get(ctx, id)
	}
	body["updated_at"] = time.Now().UTC()

	rows, err := r.rows(ctx, "update identity", request{
		method: http.MethodPatch,
		query:  url.Values{"id": {eq(strconv.FormatInt(id, 10))}},
		body:   body,
		prefer: []string{"return=representation"},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return rows[0].toDomain(), nil
}

func (r *IdentityRepository) Remove(ctx context.Context, id int64) (*domain.Identity, error) {
	rows, err := r.rows(ctx, "remove identity", request{
		method: http.MethodDelete,
		query:  url.Values{"id": {eq(strconv.FormatInt(id, 10))}},
		prefer: []string{"return=representation"},
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return rows[0].toDomain(), nil
}

func (r *IdentityRepository) Ping(ctx context.Context) error {
	_, err := r.client.do(ctx, request{
		method: http.MethodGet,
		table:  r.table,
		query:  url.Values{"select": {"id"}, "limit": {"0"}},
	})
	if err != nil {
		return domain.Unavailable("ping rest", err)
	}
	return nil
}

func (r *IdentityRepository) one(ctx context.Context, op string, q url.Values) (*domain.Identity, error) {
	q.Set("select", "*")
	q.Set("limit", "1")
	rows, err := r.rows(ctx, op, request{method: http.MethodGet, query: q})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return rows[0].toDomain(), nil
}

func (r *IdentityRepository) rows(ctx context.Context, op string, req request) ([]identityRow, error) {
	req.table = r.table
	resp, err := r.client.do(ctx, req)
	if err != nil {
		if apiErr, ok := isConflict(err); ok {
			return nil, conflictField(apiErr)
		}
		return nil, domain.Unavailable(op, err)
	}
	var rows []identityRow
	if len(resp.body) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(resp.body, &rows); err != nil {
		return nil, domain.Unavailable(op, fmt.Errorf("decode rows: %w", err))
	}
	return rows, nil
}

func patchBody(p domain.IdentityPatch) map[string]any {
	body := make(map[string]any)
	if p.Email != nil {
		body["email"] = *p.Email
	}
	if p.Username != nil {
		body["username"] = *p.Username
	}
	if p.FullName != nil {
		body["full_name"] = *p.FullName
	}
	if p.HashedPassword != nil {
		body["hashed_password"] = *p.HashedPassword
	}
	if p.IsActive != nil {
		body["is_active"] = *p.IsActive
	}
	if p.IsSuperuser != nil {
		body["is_superuser"] = *p.IsSuperuser
	}
	return body
}

func conflictField(e *APIError) error {
	if strings.Contains(e.Message+e.Details, "username") {
		return domain.NewConflict(domain.FieldUsername)
	}
	return domain.NewConflict(domain.FieldEmail)
}
