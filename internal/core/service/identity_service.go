package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

// PasswordHasher hashes and verifies password credentials.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, credential string) bool
}

// TokenIssuer signs access tokens for an identity id.
type TokenIssuer interface {
	Issue(subjectID int64, ttl time.Duration) (string, time.Time, error)
}

type identityBase = BaseService[domain.Identity, domain.NewIdentity, domain.IdentityPatch]

// IdentityService enforces identity rules the repositories cannot:
// uniqueness of email and username, password hashing, and self-targeting
// guards on administrative mutations. Create, Update and Remove shadow the
// embedded BaseService methods.
type IdentityService struct {
	*identityBase
	hasher    PasswordHasher
	tokens    TokenIssuer
	dummyHash string
	logger    zerolog.Logger
}

var _ ports.IdentityService = (*IdentityService)(nil)

func NewIdentityService(repo ports.IdentityRepository, hasher PasswordHasher, tokens TokenIssuer, logger zerolog.Logger) *IdentityService {
	s := &IdentityService{
		identityBase: NewBaseService(repo),
		hasher:       hasher,
		tokens:       tokens,
		logger:       logger,
	}
	// Compared against when a login names no identity, so both failure
	// paths pay for one bcrypt comparison.
	if h, err := hasher.Hash("identity-api/unknown-login"); err == nil {
		s.dummyHash = h
	}
	return s
}

// Create registers a new identity after checking that neither the email nor
// the username is taken. The password is hashed exactly once.
func (s *IdentityService) Create(ctx context.Context, in ports.CreateIdentityInput) (*domain.Identity, error) {
	if in.Email == "" || in.Username == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email, username and password are required", domain.ErrValidation)
	}
	if err := s.ensureFree(ctx, domain.FieldEmail, in.Email, 0); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, domain.FieldUsername, in.Username, 0); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	record := domain.NewIdentity{
		Email:          in.Email,
		Username:       in.Username,
		FullName:       in.FullName,
		HashedPassword: hash,
		IsActive:       true,
	}
	if in.IsActive != nil {
		record.IsActive = *in.IsActive
	}
	if in.IsSuperuser != nil {
		record.IsSuperuser = *in.IsSuperuser
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("identity_id", created.ID).Str("username", created.Username).Msg("identity created")
	return created, nil
}

// Update applies a sparse change. Changed email or username values are
// re-checked against every other identity; a new password replaces the
// stored credential with a fresh hash.
func (s *IdentityService) Update(ctx context.Context, id int64, in ports.UpdateIdentityInput) (*domain.Identity, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor, ok := ports.ActorFromContext(ctx); ok && actor == id {
		if in.IsActive != nil && !*in.IsActive {
			return nil, fmt.Errorf("%w: cannot deactivate your own account", domain.ErrForbidden)
		}
		if in.IsSuperuser != nil && !*in.IsSuperuser && current.IsSuperuser {
			return nil, fmt.Errorf("%w: cannot remove your own admin role", domain.ErrForbidden)
		}
	}

	var patch domain.IdentityPatch
	if in.Email != nil && *in.Email != current.Email {
		if err := s.ensureFree(ctx, domain.FieldEmail, *in.Email, id); err != nil {
			return nil, err
		}
		patch.Email = in.Email
	}
	if in.Username != nil && *in.Username != current.Username {
		if err := s.ensureFree(ctx, domain.FieldUsername, *in.Username, id); err != nil {
			return nil, err
		}
		patch.Username = in.Username
	}
	if in.Password != nil {
		if *in.Password == "" {
			return nil, fmt.Errorf("%w: password must not be empty", domain.ErrValidation)
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, err
		}
		patch.HashedPassword = &hash
	}
	patch.FullName = in.FullName
	patch.IsActive = in.IsActive
	patch.IsSuperuser = in.IsSuperuser

	if patch.IsEmpty() {
		return current, nil
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("identity_id", id).Msg("identity updated")
	return updated, nil
}

// Remove deletes an identity permanently. An actor can never remove itself.
func (s *IdentityService) Remove(ctx context.Context, id int64) (*domain.Identity, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if actor, ok := ports.ActorFromContext(ctx); ok && actor == id {
		return nil, fmt.Errorf("%w: cannot delete your own account", domain.ErrForbidden)
	}

	removed, err := s.repo.Remove(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Warn().Int64("identity_id", id).Msg("identity removed")
	return removed, nil
}

// Authenticate resolves login as an email, then as a username, and checks the
// password. Unknown logins and wrong passwords both yield
// domain.ErrInvalidCredentials.
func (s *IdentityService) Authenticate(ctx context.Context, login, password string) (*domain.Identity, error) {
	if login == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	identity, err := s.GetByField(ctx, domain.FieldEmail, login)
	if errors.Is(err, domain.ErrNotFound) {
		identity, err = s.GetByField(ctx, domain.FieldUsername, login)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(password, identity.HashedPassword) {
		return nil, domain.ErrInvalidCredentials
	}
	return identity, nil
}

// IssueAccessToken signs a bearer token for id with the configured TTL.
func (s *IdentityService) IssueAccessToken(id int64) (*domain.AccessToken, error) {
	token, _, err := s.tokens.Issue(id, 0)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &domain.AccessToken{AccessToken: token, TokenType: domain.TokenTypeBearer}, nil
}

func (s *IdentityService) IsActive(identity *domain.Identity) bool {
	return identity != nil && identity.IsActive
}

func (s *IdentityService) IsElevated(identity *domain.Identity) bool {
	return identity != nil && identity.IsSuperuser
}

// EnsureSuperuser creates the bootstrap administrator unless an identity with
// that email already exists.
func (s *IdentityService) EnsureSuperuser(ctx context.Context, email, username, password string) (bool, error) {
	if email == "" {
		return false, nil
	}
	_, err := s.GetByField(ctx, domain.FieldEmail, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	name := "Administrator"
	elevated := true
	if _, err := s.Create(ctx, ports.CreateIdentityInput{
		Email:       email,
		Username:    username,
		FullName:    &name,
		Password:    password,
		IsSuperuser: &elevated,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// ensureFree fails with a ConflictError when value already belongs to an
// identity other than self. Backend errors surface unchanged.
func (s *IdentityService) ensureFree(ctx context.Context, field domain.LookupField, value string, self int64) error {
	existing, err := s.GetByField(ctx, field, value)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID == self:
		return nil
	default:
		return domain.NewConflict(field)
	}
}
