package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crudkit/identity-api/internal/core/domain"
)

// DefaultTokenTTL is eight days.
const DefaultTokenTTL = 11520 * time.Minute

// TokenService issues and validates HS256 bearer tokens carrying only the
// subject id and an expiry.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService returns a TokenService signing with secret. A non-positive
// ttl falls back to DefaultTokenTTL.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// TTL is the configured default lifetime.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token for subjectID that expires ttl from now.
func (s *TokenService) Issue(subjectID int64, ttl time.Duration) (string, time.Time, error) {
	if subjectID <= 0 {
		return "", time.Time{}, errors.New("issue token: invalid subject")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	exp := s.now().Add(ttl).Truncate(time.Second)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(subjectID, 10),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Validate returns the subject id of a well-formed, correctly signed and
// unexpired token. Every failure is reported as domain.ErrUnauthorized.
func (s *TokenService) Validate(token string) (int64, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return 0, domain.ErrUnauthorized
	}

	// jwt accepts now == exp; expiry here is strict.
	if !s.now().Before(claims.ExpiresAt.Time) {
		return 0, domain.ErrUnauthorized
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrUnauthorized
	}
	return id, nil
}
