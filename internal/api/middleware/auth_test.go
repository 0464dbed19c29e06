package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pw/identity-service/internal/core/domain"
	"github.com/pw/identity-service/internal/core/service"
)

type stubIdentityStore struct {
	identities map[string]*domain.Identity
}

func newStubIdentityStore(identities ...*domain.Identity) *stubIdentityStore {
	s := &stubIdentityStore{identities: make(map[string]*domain.Identity)}
	for _, i := range identities {
		s.identities[i.Email] = i
	}
	return s
}

func (s *stubIdentityStore) FindByEmail(_ context.Context, email string) (*domain.Identity, error) {
	if i, ok := s.identities[email]; ok {
		clone := *i
		return &clone, nil
	}
	return nil, domain.ErrIdentityNotFound
}

func (s *stubIdentityStore) FindRoleByName(_ context.Context, name domain.RoleName) (*domain.Role, error) {
	return &domain.Role{Name: name}, nil
}

func (s *stubIdentityStore) Create(_ context.Context, identity *domain.Identity) (*domain.Identity, error) {
	s.identities[identity.Email] = identity
	return identity, nil
}

func (s *stubIdentityStore) List(_ context.Context) ([]domain.Identity, error) {
	out := make([]domain.Identity, 0, len(s.identities))
	for _, i := range s.identities {
		out = append(out, *i)
	}
	return out, nil
}

func testIdentity(email string, role domain.RoleName) *domain.Identity {
	return &domain.Identity{
		ID:    email,
		Email: email,
		Role:  domain.Role{Name: role},
	}
}

func runAuth(t *testing.T, tokens *service.TokenService, store *stubIdentityStore, header string) (echo.Context, *httptest.ResponseRecorder, bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reached := false
	handler := Authenticate(tokens, store)(func(c echo.Context) error {
		reached = true
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	return c, rec, reached, err
}

func TestAuthenticate_NoHeaderPassesThroughAnonymous(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	store := newStubIdentityStore()

	c, rec, reached, err := runAuth(t, tokens, store, "")
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !reached {
		t.Fatalf("request without header must proceed")
	}
	if Principal(c) != nil {
		t.Fatalf("principal must stay empty")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthenticate_NonBearerHeaderPassesThrough(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	store := newStubIdentityStore()

	c, _, reached, err := runAuth(t, tokens, store, "Basic dXNlcjpwYXNz")
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !reached || Principal(c) != nil {
		t.Fatalf("non-bearer header must be treated as anonymous")
	}
}

func TestAuthenticate_ValidToken(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	identity := testIdentity("alice@example.com", domain.RoleAdmin)
	store := newStubIdentityStore(identity)

	token, err := tokens.Issue(identity.Email, nil)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	c, rec, reached, err := runAuth(t, tokens, store, "Bearer "+token)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !reached {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	p := Principal(c)
	if p == nil {
		t.Fatalf("principal not populated")
	}
	if p.Identity.Email != "alice@example.com" {
		t.Fatalf("unexpected identity: %+v", p.Identity)
	}
	if len(p.Authorities) != 1 || p.Authorities[0] != "ROLE_ADMIN" {
		t.Fatalf("unexpected authorities: %v", p.Authorities)
	}
}

func TestAuthenticate_MalformedTokenGoesToErrorPath(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	store := newStubIdentityStore()

	_, _, reached, err := runAuth(t, tokens, store, "Bearer not-a-token")
	if !errors.Is(err, domain.ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
	if reached {
		t.Fatalf("error path must not reach the handler")
	}
}

func TestAuthenticate_ExpiredTokenPassesThroughAnonymous(t *testing.T) {
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tokens := service.NewTokenService("secret", time.Hour).WithClock(func() time.Time { return issued })
	identity := testIdentity("bob@example.com", domain.RoleUser)
	store := newStubIdentityStore(identity)

	token, err := tokens.Issue(identity.Email, nil)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	tokens.WithClock(func() time.Time { return issued.Add(2 * time.Hour) })

	c, _, reached, err := runAuth(t, tokens, store, "Bearer "+token)
	if err != nil {
		t.Fatalf("expired token must not error, got %v", err)
	}
	if !reached {
		t.Fatalf("request must proceed unauthenticated")
	}
	if Principal(c) != nil {
		t.Fatalf("expired token must not establish a principal")
	}
}

func TestAuthenticate_ForgedTokenPassesThroughAnonymous(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	forger := service.NewTokenService("other-secret", time.Hour)
	identity := testIdentity("carol@example.com", domain.RoleUser)
	store := newStubIdentityStore(identity)

	token, err := forger.Issue(identity.Email, nil)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	c, _, reached, err := runAuth(t, tokens, store, "Bearer "+token)
	if err != nil {
		t.Fatalf("forged token must not error, got %v", err)
	}
	if !reached || Principal(c) != nil {
		t.Fatalf("forged token must fall through to anonymous")
	}
}

func TestAuthenticate_UnknownSubjectGoesToErrorPath(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	store := newStubIdentityStore()

	token, err := tokens.Issue("ghost@example.com", nil)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	_, _, reached, err := runAuth(t, tokens, store, "Bearer "+token)
	if !errors.Is(err, domain.ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
	if reached {
		t.Fatalf("unknown subject must not reach the handler")
	}
}

func TestAuthenticate_ExistingPrincipalNotReauthenticated(t *testing.T) {
	tokens := service.NewTokenService("secret", time.Hour)
	identity := testIdentity("dave@example.com", domain.RoleUser)
	// Empty store: a lookup would fail, proving the guard short-circuits.
	store := newStubIdentityStore()

	token, err := tokens.Issue(identity.Email, nil)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	SetPrincipal(c, domain.NewPrincipal(*identity))

	handler := Authenticate(tokens, store)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if p := Principal(c); p == nil || p.Identity.Email != "dave@example.com" {
		t.Fatalf("existing principal must be preserved")
	}
}
