package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/crudkit/identity-api/internal/core/domain"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	sess, err := store.Create(ctx, 5, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := store.Get(ctx, sess.ID)
	if err != nil || got.IdentityID != 5 {
		t.Fatalf("get: %+v %v", got, err)
	}

	now = sess.ExpiresAt
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expired get: got %v", err)
	}

	if _, err := store.Get(ctx, "unknown"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown get: got %v", err)
	}
	if _, err := store.Create(ctx, 5, 0); err == nil {
		t.Fatal("zero ttl should fail")
	}
}

func TestMemoryStore_DeleteAndPurge(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	short, _ := store.Create(ctx, 1, time.Minute)
	_, _ = store.Create(ctx, 2, time.Minute)
	long, _ := store.Create(ctx, 3, time.Hour)

	if err := store.Delete(ctx, short.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "never-existed"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}

	now = now.Add(2 * time.Minute)
	n, err := store.PurgeExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("purge = %d, %v; want 1", n, err)
	}
	if store.Len() != 1 {
		t.Fatalf("len = %d, want 1", store.Len())
	}
	if _, err := store.Get(ctx, long.ID); err != nil {
		t.Fatalf("long session lost: %v", err)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			sess, err := store.Create(ctx, id, time.Hour)
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			if _, err := store.Get(ctx, sess.ID); err != nil {
				t.Errorf("get: %v", err)
			}
			_ = store.Delete(ctx, sess.ID)
		}(int64(i + 1))
	}
	wg.Wait()
	if store.Len() != 0 {
		t.Fatalf("len = %d, want 0", store.Len())
	}
}
