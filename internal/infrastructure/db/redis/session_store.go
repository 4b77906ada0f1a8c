package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

const sessionKeyPrefix = "admin_session:"

// SessionStore keeps admin panel sessions in Redis. Each session is one key
// whose TTL matches the session lifetime, so expiry needs no sweeper.
// Key format: admin_session:<uuid>
type SessionStore struct {
	client redis.Cmdable
	now    func() time.Time
}

var (
	_ ports.SessionStore = (*SessionStore)(nil)
	_ ports.Pinger       = (*SessionStore)(nil)
)

// NewSessionStore creates a SessionStore wrapping the given Redis client.
func NewSessionStore(client redis.Cmdable) *SessionStore {
	return &SessionStore{client: client, now: time.Now}
}

func (s *SessionStore) Create(ctx context.Context, identityID int64, ttl time.Duration) (*domain.AdminSession, error) {
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	now := s.now().UTC()
	sess := &domain.AdminSession{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	payload, err := encodeSession(sess)
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, sessionKey(sess.ID), payload, ttl).Err(); err != nil {
		return nil, domain.Unavailable("create session", err)
	}
	return sess, nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.AdminSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.Unavailable("get session", err)
	}
	sess, err := decodeSession(raw)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	if sess.Expired(s.now()) {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return domain.Unavailable("delete session", err)
	}
	return nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func encodeSession(sess *domain.AdminSession) ([]byte, error) {
	b, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return b, nil
}

func decodeSession(raw []byte) (*domain.AdminSession, error) {
	var sess domain.AdminSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sess.ID == "" || sess.IdentityID <= 0 {
		return nil, errors.New("decode session: incomplete payload")
	}
	return &sess, nil
}

// Ping reports whether Redis answers.
func (s *SessionStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return domain.Unavailable("ping redis", err)
	}
	return nil
}
