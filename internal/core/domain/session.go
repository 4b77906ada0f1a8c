package domain

import "time"

// AdminSession is server-side admin panel state. It is never accepted by
// the bearer-token API.
type AdminSession struct {
	ID         string    `json:"id"`
	IdentityID int64     `json:"identity_id"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer usable at now.
func (s AdminSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// AccessToken is the bundle returned by a successful login.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

const TokenTypeBearer = "bearer"
