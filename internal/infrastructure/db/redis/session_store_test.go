package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crudkit/identity-api/internal/core/domain"
)

func TestSessionKey(t *testing.T) {
	if got := sessionKey("abc"); got != "admin_session:abc" {
		t.Fatalf("key = %q", got)
	}
}

func TestSessionCodec(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	in := &domain.AdminSession{ID: "s1", IdentityID: 9, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	raw, err := encodeSession(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decodeSession(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ID != in.ID || out.IdentityID != in.IdentityID || !out.ExpiresAt.Equal(in.ExpiresAt) {
		t.Fatalf("round trip = %+v", out)
	}

	for _, bad := range []string{"", "{", `{"id":"s1"}`, `{"identity_id":3}`} {
		if _, err := decodeSession([]byte(bad)); err == nil {
			t.Errorf("decode(%q) should fail", bad)
		}
	}
}

func TestSessionStore_UnreachableIsUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	store := NewSessionStore(client)
	ctx := context.Background()

	if _, err := store.Create(ctx, 1, time.Hour); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("create: got %v", err)
	}
	if _, err := store.Get(ctx, "x"); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("get: got %v", err)
	}
	if _, err := store.Create(ctx, 1, 0); err == nil {
		t.Fatal("zero ttl should fail")
	}
}
