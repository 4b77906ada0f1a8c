package sql

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

// IdentityRepository stores identities in a relational database through gorm.
type IdentityRepository struct {
	db *gorm.DB
}

var (
	_ ports.IdentityRepository = (*IdentityRepository)(nil)
	_ ports.Pinger             = (*IdentityRepository)(nil)
)

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) Get(ctx context.Context, id int64) (*domain.Identity, error) {
	var m IdentityModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translate("get identity", err)
	}
	return m.toDomain(), nil
}

func (r *IdentityRepository) GetByField(ctx context.Context, field domain.LookupField, value string) (*domain.Identity, error) {
	if !domain.ValidIdentityField(field) {
		return nil, domain.ErrValidation
	}
	var m IdentityModel
	// field comes from a closed allowlist, so it is safe as a column name.
	if err := r.db.WithContext(ctx).Where(string(field)+" = ?", value).First(&m).Error; err != nil {
		return nil, translate("get identity by "+string(field), err)
	}
	return m.toDomain(), nil
}

// List returns identities ordered by id.
func (r *IdentityRepository) List(ctx context.Context, offset, limit int) ([]*domain.Identity, error) {
	rows := make([]IdentityModel, 0, limit)
	if err := r.db.WithContext(ctx).Order("id ASC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, translate("list identities", err)
	}
	out := make([]*domain.Identity, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (r *IdentityRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&IdentityModel{}).Count(&n).Error; err != nil {
		return 0, translate("count identities", err)
	}
	return n, nil
}

func (r *IdentityRepository) Create(ctx context.Context, in domain.NewIdentity) (*domain.Identity, error) {
	m := IdentityModel{
		Email:          in.Email,
		Username:       in.Username,
		FullName:       in.FullName,
		HashedPassword: in.HashedPassword,
		IsActive:       in.IsActive,
		IsSuperuser:    in.IsSuperuser,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, translate("create identity", err)
	}
	return m.toDomain(), nil
}

// Update writes only the fields present in patch.
func (r *IdentityRepository) Update(ctx context.Context, id int64, patch domain.IdentityPatch) (*domain.Identity, error) {
	changes := patchColumns(patch)
	if len(changes) == 0 {
		return r.Get(ctx, id)
	}
	changes["updated_at"] = time.Now().UTC()

	res := r.db.WithContext(ctx).Model(&IdentityModel{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return nil, translate("update identity", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *IdentityRepository) Remove(ctx context.Context, id int64) (*domain.Identity, error) {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	res := r.db.WithContext(ctx).Delete(&IdentityModel{}, id)
	if res.Error != nil {
		return nil, translate("remove identity", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return existing, nil
}

func (r *IdentityRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return domain.Unavailable("ping sql", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return domain.Unavailable("ping sql", err)
	}
	return nil
}

func patchColumns(p domain.IdentityPatch) map[string]any {
	changes := make(map[string]any)
	if p.Email != nil {
		changes["email"] = *p.Email
	}
	if p.Username != nil {
		changes["username"] = *p.Username
	}
	if p.FullName != nil {
		changes["full_name"] = *p.FullName
	}
	if p.HashedPassword != nil {
		changes["hashed_password"] = *p.HashedPassword
	}
	if p.IsActive != nil {
		changes["is_active"] = *p.IsActive
	}
	if p.IsSuperuser != nil {
		changes["is_superuser"] = *p.IsSuperuser
	}
	return changes
}

// translate maps gorm and driver errors onto domain errors.
func translate(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return uniqueViolation(err)
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value") {
		return uniqueViolation(err)
	}
	return domain.Unavailable(op, err)
}

func uniqueViolation(err error) error {
	if strings.Contains(err.Error(), "username") {
		return domain.NewConflict(domain.FieldUsername)
	}
	return domain.NewConflict(domain.FieldEmail)
}
