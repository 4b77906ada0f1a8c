package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

// stubIdentityService implements ports.IdentityService. Unset funcs fail the
// call with an error so unexpected use shows up in assertions.
type stubIdentityService struct {
	getFn          func(ctx context.Context, id int64) (*domain.Identity, error)
	listFn         func(ctx context.Context, offset, limit int) ([]*domain.Identity, error)
	countFn        func(ctx context.Context) (int64, error)
	createFn       func(ctx context.Context, in ports.CreateIdentityInput) (*domain.Identity, error)
	updateFn       func(ctx context.Context, id int64, in ports.UpdateIdentityInput) (*domain.Identity, error)
	authenticateFn func(ctx context.Context, login, password string) (*domain.Identity, error)
}

var errUnexpectedCall = errors.New("unexpected call")

func (s *stubIdentityService) Get(ctx context.Context, id int64) (*domain.Identity, error) {
	if s.getFn == nil {
		return nil, errUnexpectedCall
	}
	return s.getFn(ctx, id)
}

func (s *stubIdentityService) List(ctx context.Context, offset, limit int) ([]*domain.Identity, error) {
	if s.listFn == nil {
		return nil, errUnexpectedCall
	}
	return s.listFn(ctx, offset, limit)
}

func (s *stubIdentityService) Count(ctx context.Context) (int64, error) {
	if s.countFn == nil {
		return 0, errUnexpectedCall
	}
	return s.countFn(ctx)
}

func (s *stubIdentityService) Create(ctx context.Context, in ports.CreateIdentityInput) (*domain.Identity, error) {
	if s.createFn == nil {
		return nil, errUnexpectedCall
	}
	return s.createFn(ctx, in)
}

func (s *stubIdentityService) Update(ctx context.Context, id int64, in ports.UpdateIdentityInput) (*domain.Identity, error) {
	if s.updateFn == nil {
		return nil, errUnexpectedCall
	}
	return s.updateFn(ctx, id, in)
}

func (s *stubIdentityService) Remove(context.Context, int64) (*domain.Identity, error) {
	return nil, errUnexpectedCall
}

func (s *stubIdentityService) Authenticate(ctx context.Context, login, password string) (*domain.Identity, error) {
	if s.authenticateFn == nil {
		return nil, errUnexpectedCall
	}
	return s.authenticateFn(ctx, login, password)
}

func (s *stubIdentityService) IssueAccessToken(id int64) (*domain.AccessToken, error) {
	return &domain.AccessToken{AccessToken: "token-" + strconv.FormatInt(id, 10), TokenType: domain.TokenTypeBearer}, nil
}

func (s *stubIdentityService) IsActive(identity *domain.Identity) bool {
	return identity != nil && identity.IsActive
}

func (s *stubIdentityService) IsElevated(identity *domain.Identity) bool {
	return identity != nil && identity.IsSuperuser
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestAuthHandler_Register_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubIdentityService{
		createFn: func(_ context.Context, in ports.CreateIdentityInput) (*domain.Identity, error) {
			if in.Email != "a@x.io" || in.Username != "a" || in.Password != "pw" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &domain.Identity{ID: 1, Email: in.Email, Username: in.Username, HashedPassword: "secret-hash", IsActive: true}, nil
		},
	}
	h := NewAuthHandler(stub, RegistrationPolicy{Open: true})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/register", `{"email":"a@x.io","username":"a","password":"pw"}`), rec)
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret-hash") || strings.Contains(rec.Body.String(), "hashed_password") {
		t.Fatalf("credential leaked: %s", rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["id"] != float64(1) || resp["is_active"] != true {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestAuthHandler_Register_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		policy  RegistrationPolicy
		body    string
		create  func(context.Context, ports.CreateIdentityInput) (*domain.Identity, error)
		wantErr error
	}{
		{
			name:    "registration closed",
			policy:  RegistrationPolicy{Open: false},
			body:    `{"email":"a@x.io","username":"a","password":"pw"}`,
			wantErr: domain.ErrRegistrationClosed,
		},
		{
			name:    "self elevation",
			policy:  RegistrationPolicy{Open: true},
			body:    `{"email":"a@x.io","username":"a","password":"pw","is_superuser":true}`,
			wantErr: domain.ErrForbidden,
		},
		{
			name:    "invalid email",
			policy:  RegistrationPolicy{Open: true},
			body:    `{"email":"nope","username":"a","password":"pw"}`,
			wantErr: domain.ErrValidation,
		},
		{
			name:    "malformed json",
			policy:  RegistrationPolicy{Open: true},
			body:    `{`,
			wantErr: domain.ErrValidation,
		},
		{
			name:   "conflict",
			policy: RegistrationPolicy{Open: true},
			body:   `{"email":"a@x.io","username":"a","password":"pw"}`,
			create: func(context.Context, ports.CreateIdentityInput) (*domain.Identity, error) {
				return nil, domain.NewConflict(domain.FieldEmail)
			},
			wantErr: domain.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho()
			h := NewAuthHandler(&stubIdentityService{createFn: tt.create}, tt.policy)
			c := e.NewContext(jsonRequest(http.MethodPost, "/auth/register", tt.body), httptest.NewRecorder())

			if err := h.Register(c); !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthHandler_Register_ElevatedAllowed(t *testing.T) {
	e := newTestEcho()
	stub := &stubIdentityService{
		createFn: func(_ context.Context, in ports.CreateIdentityInput) (*domain.Identity, error) {
			return &domain.Identity{ID: 2, IsSuperuser: *in.IsSuperuser, IsActive: true}, nil
		},
	}
	h := NewAuthHandler(stub, RegistrationPolicy{Open: true, AllowElevated: true})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, "/auth/register", `{"email":"b@x.io","username":"b","password":"pw","is_superuser":true}`), rec)
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newTestEcho()
	stub := &stubIdentityService{
		authenticateFn: func(_ context.Context, login, password string) (*domain.Identity, error) {
			if login != "a@x.io" || password != "pw" {
				t.Fatalf("unexpected args: %s %s", login, password)
			}
			return &domain.Identity{ID: 1, IsActive: true}, nil
		},
	}
	h := NewAuthHandler(stub, RegistrationPolicy{})

	rec := httptest.NewRecorder()
	c := e.NewContext(formRequest("/auth/login", url.Values{"username": {"a@x.io"}, "password": {"pw"}}), rec)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp domain.AccessToken
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != "bearer" {
		t.Fatalf("unexpected token payload: %+v", resp)
	}
}

func TestAuthHandler_Login_Failures(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		auth    func(context.Context, string, string) (*domain.Identity, error)
		wantErr error
	}{
		{
			name: "wrong password",
			form: url.Values{"username": {"a"}, "password": {"bad"}},
			auth: func(context.Context, string, string) (*domain.Identity, error) {
				return nil, domain.ErrInvalidCredentials
			},
			wantErr: domain.ErrInvalidCredentials,
		},
		{
			name: "inactive",
			form: url.Values{"username": {"a"}, "password": {"pw"}},
			auth: func(context.Context, string, string) (*domain.Identity, error) {
				return &domain.Identity{ID: 1, IsActive: false}, nil
			},
			wantErr: domain.ErrInactiveAccount,
		},
		{
			name:    "missing password",
			form:    url.Values{"username": {"a"}},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEcho()
			h := NewAuthHandler(&stubIdentityService{authenticateFn: tt.auth}, RegistrationPolicy{})
			c := e.NewContext(formRequest("/auth/login", tt.form), httptest.NewRecorder())

			if err := h.Login(c); !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}
