package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crudkit/identity-api/internal/core/domain"
)

// fakePostgREST implements the slice of the PostgREST protocol the
// repository relies on, over an in-memory users table.
type fakePostgREST struct {
	mu     sync.Mutex
	rows   []identityRow
	nextID int64
	apiKey string
	down   bool
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if r.Header.Get("apikey") != f.apiKey || r.Header.Get("Authorization") != "Bearer "+f.apiKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.URL.Path != "/users" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	matched := f.filter(q)
	representation := strings.Contains(r.Header.Get("Prefer"), "return=representation")

	switch r.Method {
	case http.MethodGet:
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit := len(matched)
		if l := q.Get("limit"); l != "" {
			limit, _ = strconv.Atoi(l)
		}
		if strings.Contains(r.Header.Get("Prefer"), "count=exact") {
			w.Header().Set("Content-Range", fmt.Sprintf("0-%d/%d", limit-1, len(matched)))
		}
		page := []identityRow{}
		for i := offset; i < len(matched) && len(page) < limit; i++ {
			page = append(page, f.rows[matched[i]])
		}
		writeJSON(w, http.StatusOK, page)

	case http.MethodPost:
		var in identityRow
		_ = json.NewDecoder(r.Body).Decode(&in)
		for _, row := range f.rows {
			if row.Email == in.Email {
				writeJSON(w, http.StatusConflict, map[string]string{"code": "23505", "message": `duplicate key value violates unique constraint "users_email_key"`})
				return
			}
			if row.Username == in.Username {
				writeJSON(w, http.StatusConflict, map[string]string{"code": "23505", "message": `duplicate key value violates unique constraint "users_username_key"`})
				return
			}
		}
		f.nextID++
		in.ID = f.nextID
		in.CreatedAt = time.Now().UTC()
		in.UpdatedAt = in.CreatedAt
		f.rows = append(f.rows, in)
		if representation {
			writeJSON(w, http.StatusCreated, []identityRow{in})
			return
		}
		w.WriteHeader(http.StatusCreated)

	case http.MethodPatch:
		var patch map[string]json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&patch)
		out := []identityRow{}
		for _, i := range matched {
			b, _ := json.Marshal(f.rows[i])
			var merged map[string]json.RawMessage
			_ = json.Unmarshal(b, &merged)
			for k, v := range patch {
				merged[k] = v
			}
			b, _ = json.Marshal(merged)
			_ = json.Unmarshal(b, &f.rows[i])
			out = append(out, f.rows[i])
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodDelete:
		out := []identityRow{}
		keep := f.rows[:0]
		drop := map[int]bool{}
		for _, i := range matched {
			drop[i] = true
			out = append(out, f.rows[i])
		}
		for i, row := range f.rows {
			if !drop[i] {
				keep = append(keep, row)
			}
		}
		f.rows = keep
		writeJSON(w, http.StatusOK, out)
	}
}

// filter returns indexes of rows matching every eq. filter in q.
func (f *fakePostgREST) filter(q map[string][]string) []int {
	var idx []int
	for i, row := range f.rows {
		ok := true
		for col, vals := range q {
			if len(vals) == 0 || !strings.HasPrefix(vals[0], "eq.") {
				continue
			}
			want := strings.TrimPrefix(vals[0], "eq.")
			switch col {
			case "id":
				ok = ok && strconv.FormatInt(row.ID, 10) == want
			case "email":
				ok = ok && row.Email == want
			case "username":
				ok = ok && row.Username == want
			}
		}
		if ok {
			idx = append(idx, i)
		}
	}
	return idx
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestRepo(t *testing.T) (*IdentityRepository, *fakePostgREST) {
	t.Helper()
	fake := &fakePostgREST{apiKey: "anon-key"}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewIdentityRepository(NewClient(srv.URL, "anon-key", 2*time.Second), ""), fake
}

func newIdentity(n int) domain.NewIdentity {
	return domain.NewIdentity{
		Email:          fmt.Sprintf("user%d@x.io", n),
		Username:       fmt.Sprintf("user%d", n),
		HashedPassword: "$2a$04$hash",
		IsActive:       true,
	}
}

func TestIdentityRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	created, err := repo.Create(ctx, newIdentity(1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 1 || created.HashedPassword != "$2a$04$hash" {
		t.Fatalf("created = %+v", created)
	}

	got, err := repo.GetByField(ctx, domain.FieldEmail, "user1@x.io")
	if err != nil || got.ID != created.ID {
		t.Fatalf("get by email: %+v %v", got, err)
	}
	if _, err := repo.GetByField(ctx, domain.FieldUsername, "nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing username: got %v", err)
	}
	if _, err := repo.GetByField(ctx, domain.LookupField("is_superuser"), "true"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("disallowed field: got %v", err)
	}

	elevated := true
	updated, err := repo.Update(ctx, created.ID, domain.IdentityPatch{IsSuperuser: &elevated})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.IsSuperuser || updated.Email != created.Email {
		t.Fatalf("updated = %+v", updated)
	}
	if _, err := repo.Update(ctx, 99, domain.IdentityPatch{IsSuperuser: &elevated}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update missing: got %v", err)
	}

	removed, err := repo.Remove(ctx, created.ID)
	if err != nil || removed.ID != created.ID {
		t.Fatalf("remove: %+v %v", removed, err)
	}
	if _, err := repo.Get(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get after remove: got %v", err)
	}
	if _, err := repo.Remove(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("remove missing: got %v", err)
	}
}

func TestIdentityRepository_Conflict(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	if _, err := repo.Create(ctx, newIdentity(1)); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := newIdentity(2)
	dup.Username = "user1"
	_, err := repo.Create(ctx, dup)
	var ce *domain.ConflictError
	if !errors.As(err, &ce) || ce.Field != "username" {
		t.Fatalf("got %v, want username conflict", err)
	}
}

func TestIdentityRepository_PaginationAndCount(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	for i := 1; i <= 150; i++ {
		if _, err := repo.Create(ctx, newIdentity(i)); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	n, err := repo.Count(ctx)
	if err != nil || n != 150 {
		t.Fatalf("count = %d, %v", n, err)
	}
	page, err := repo.List(ctx, 100, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 50 || page[0].ID != 101 {
		t.Fatalf("page len=%d first=%d", len(page), page[0].ID)
	}
}

func TestIdentityRepository_Unavailable(t *testing.T) {
	ctx := context.Background()
	repo, fake := newTestRepo(t)
	fake.mu.Lock()
	fake.down = true
	fake.mu.Unlock()

	if _, err := repo.Get(ctx, 1); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("get: got %v", err)
	}
	if _, err := repo.Count(ctx); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("count: got %v", err)
	}
	if err := repo.Ping(ctx); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("ping: got %v", err)
	}

	unreachable := NewIdentityRepository(NewClient("http://127.0.0.1:1", "", time.Second), "users")
	if _, err := unreachable.List(ctx, 0, 10); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("unreachable: got %v", err)
	}
}

func TestTotal(t *testing.T) {
	cases := map[string]int64{"0-9/150": 150, "*/0": 0, "0-0/1": 1}
	for in, want := range cases {
		got, err := total(in)
		if err != nil || got != want {
			t.Errorf("total(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "0-9/", "0-9/*"} {
		if _, err := total(bad); err == nil {
			t.Errorf("total(%q) should fail", bad)
		}
	}
}
