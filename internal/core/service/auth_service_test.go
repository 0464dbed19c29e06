package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/pw/identity-service/internal/core/domain"
)

type stubStore struct {
	identities map[string]*domain.Identity
	roles      map[domain.RoleName]*domain.Role
}

func newStubStore() *stubStore {
	roles := make(map[domain.RoleName]*domain.Role)
	for _, name := range []domain.RoleName{domain.RoleUser, domain.RoleAdmin, domain.RoleSuperAdmin} {
		roles[name] = &domain.Role{ID: string(name), Name: name}
	}
	return &stubStore{
		identities: make(map[string]*domain.Identity),
		roles:      roles,
	}
}

func cloneIdentity(i *domain.Identity) *domain.Identity {
	if i == nil {
		return nil
	}
	clone := *i
	return &clone
}

func (s *stubStore) FindByEmail(_ context.Context, email string) (*domain.Identity, error) {
	if i, ok := s.identities[email]; ok {
		return cloneIdentity(i), nil
	}
	return nil, domain.ErrIdentityNotFound
}

func (s *stubStore) FindRoleByName(_ context.Context, name domain.RoleName) (*domain.Role, error) {
	if r, ok := s.roles[name]; ok {
		clone := *r
		return &clone, nil
	}
	return nil, domain.ErrRoleNotFound
}

func (s *stubStore) Create(_ context.Context, identity *domain.Identity) (*domain.Identity, error) {
	if _, exists := s.identities[identity.Email]; exists {
		return nil, domain.ErrIdentityExists
	}
	copy := cloneIdentity(identity)
	if copy.ID == "" {
		copy.ID = identity.Email
	}
	s.identities[copy.Email] = cloneIdentity(copy)
	return cloneIdentity(copy), nil
}

func (s *stubStore) List(_ context.Context) ([]domain.Identity, error) {
	out := make([]domain.Identity, 0, len(s.identities))
	for _, i := range s.identities {
		out = append(out, *i)
	}
	return out, nil
}

type stubThrottle struct {
	failures map[string]int
	limit    int
}

func newStubThrottle(limit int) *stubThrottle {
	return &stubThrottle{failures: make(map[string]int), limit: limit}
}

func (t *stubThrottle) IsLocked(_ context.Context, email string) (bool, error) {
	return t.failures[email] >= t.limit, nil
}

func (t *stubThrottle) RecordFailure(_ context.Context, email string) error {
	t.failures[email]++
	return nil
}

func (t *stubThrottle) Reset(_ context.Context, email string) error {
	delete(t.failures, email)
	return nil
}

func newAuthService(store *stubStore, throttle *stubThrottle) *AuthService {
	tokens := NewTokenService("secret", time.Hour)
	if throttle == nil {
		return NewAuthService(store, tokens, nil, zerolog.Nop())
	}
	return NewAuthService(store, tokens, throttle, zerolog.Nop())
}

func TestAuthService_Register_Success(t *testing.T) {
	store := newStubStore()
	svc := newAuthService(store, nil)

	identity, err := svc.Register(context.Background(), "Alice", "alice@example.com", "pass12345")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if identity.PasswordHash == "pass12345" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte("pass12345")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if identity.Role.Name != domain.RoleUser {
		t.Fatalf("registration must assign USER, got %s", identity.Role.Name)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc := newAuthService(newStubStore(), nil)

	if _, err := svc.Register(context.Background(), "", "a@example.com", "pass"); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "Bob", "", "pass"); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Register_Duplicate(t *testing.T) {
	store := newStubStore()
	svc := newAuthService(store, nil)

	if _, err := svc.Register(context.Background(), "Bob", "bob@example.com", "pass12345"); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := svc.Register(context.Background(), "Bob", "bob@example.com", "other123"); err != domain.ErrIdentityExists {
		t.Fatalf("expected ErrIdentityExists, got %v", err)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	store := newStubStore()
	svc := newAuthService(store, nil)

	if _, err := svc.Register(context.Background(), "Carol", "carol@example.com", "s3cret123"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	token, identity, err := svc.Login(context.Background(), "carol@example.com", "s3cret123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token, got empty")
	}
	if identity == nil || identity.Email != "carol@example.com" {
		t.Fatalf("unexpected identity: %+v", identity)
	}

	tokens := NewTokenService("secret", time.Hour)
	subject, err := tokens.ExtractSubject(token)
	if err != nil {
		t.Fatalf("issued token unparsable: %v", err)
	}
	if subject != "carol@example.com" {
		t.Fatalf("token subject is %q, want the login email", subject)
	}
	if !tokens.IsValid(token, "carol@example.com") {
		t.Fatalf("issued token should validate")
	}
}

func TestAuthService_Login_InvalidPassword(t *testing.T) {
	store := newStubStore()
	svc := newAuthService(store, nil)

	_, _ = svc.Register(context.Background(), "Dave", "dave@example.com", "goodpass1")
	if _, _, err := svc.Login(context.Background(), "dave@example.com", "badpass"); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_IdentityNotFound(t *testing.T) {
	svc := newAuthService(newStubStore(), nil)

	if _, _, err := svc.Login(context.Background(), "ghost@example.com", "pass"); err != domain.ErrIdentityNotFound {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestAuthService_Login_Throttled(t *testing.T) {
	store := newStubStore()
	throttle := newStubThrottle(2)
	svc := newAuthService(store, throttle)

	_, _ = svc.Register(context.Background(), "Eve", "eve@example.com", "rightpass1")

	for i := 0; i < 2; i++ {
		if _, _, err := svc.Login(context.Background(), "eve@example.com", "wrong"); err != domain.ErrInvalidCredentials {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	// Limit reached; even the correct password is refused until the window expires.
	if _, _, err := svc.Login(context.Background(), "eve@example.com", "rightpass1"); err != domain.ErrTooManyAttempts {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
}

func TestAuthService_Login_ThrottleResetOnSuccess(t *testing.T) {
	store := newStubStore()
	throttle := newStubThrottle(3)
	svc := newAuthService(store, throttle)

	_, _ = svc.Register(context.Background(), "Frank", "frank@example.com", "rightpass1")

	_, _, _ = svc.Login(context.Background(), "frank@example.com", "wrong")
	if _, _, err := svc.Login(context.Background(), "frank@example.com", "rightpass1"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if throttle.failures["frank@example.com"] != 0 {
		t.Fatalf("successful login must reset the failure counter")
	}
}
