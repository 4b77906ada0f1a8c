package domain

import "time"

// Identity models a registered principal: an end user or an administrator.
type Identity struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	FullName       *string   `json:"full_name"`
	HashedPassword string    `json:"-"`
	IsActive       bool      `json:"is_active"`
	IsSuperuser    bool      `json:"is_superuser"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewIdentity is the repository-level create payload. The password is
// already hashed by the time it reaches a repository.
type NewIdentity struct {
	Email          string
	Username       string
	FullName       *string
	HashedPassword string
	IsActive       bool
	IsSuperuser    bool
}

// IdentityPatch is a sparse update: nil fields are left untouched.
type IdentityPatch struct {
	Email          *string
	Username       *string
	FullName       *string
	HashedPassword *string
	IsActive       *bool
	IsSuperuser    *bool
}

// IsEmpty reports whether the patch carries no field at all.
func (p IdentityPatch) IsEmpty() bool {
	return p.Email == nil && p.Username == nil && p.FullName == nil &&
		p.HashedPassword == nil && p.IsActive == nil && p.IsSuperuser == nil
}

// LookupField names a field that repositories may query by value.
type LookupField string

const (
	FieldEmail    LookupField = "email"
	FieldUsername LookupField = "username"
)

// IdentityLookupFields is the closed set of indexable identity fields.
var IdentityLookupFields = map[LookupField]struct{}{
	FieldEmail:    {},
	FieldUsername: {},
}

// ValidIdentityField reports whether f may be used in a field lookup.
func ValidIdentityField(f LookupField) bool {
	_, ok := IdentityLookupFields[f]
	return ok
}
