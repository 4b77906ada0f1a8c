package sql

import (
	"time"

	"github.com/crudkit/identity-api/internal/core/domain"
)

type IdentityModel struct {
	ID             int64  `gorm:"primaryKey"`
	Email          string `gorm:"uniqueIndex;not null"`
	Username       string `gorm:"uniqueIndex;not null"`
	FullName       *string
	HashedPassword string `gorm:"not null"`
	IsActive       bool   `gorm:"not null"`
	IsSuperuser    bool   `gorm:"not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (IdentityModel) TableName() string { return "users" }

func (m IdentityModel) toDomain() *domain.Identity {
	return &domain.Identity{
		ID:             m.ID,
		Email:          m.Email,
		Username:       m.Username,
		FullName:       m.FullName,
		HashedPassword: m.HashedPassword,
		IsActive:       m.IsActive,
		IsSuperuser:    m.IsSuperuser,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
