package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/pw/identity-service/internal/core/domain"
	"github.com/pw/identity-service/internal/core/ports"
)

// AuthService implements registration and login. Registration always assigns
// the USER role; privileged roles are granted out of band.
type AuthService struct {
	store    ports.IdentityStore
	tokens   ports.TokenService
	throttle ports.LoginThrottle
	log      zerolog.Logger
}

func NewAuthService(store ports.IdentityStore, tokens ports.TokenService, throttle ports.LoginThrottle, log zerolog.Logger) *AuthService {
	return &AuthService{store: store, tokens: tokens, throttle: throttle, log: log}
}

func (s *AuthService) Register(ctx context.Context, fullName, email, password string) (*domain.Identity, error) {
	if fullName == "" || email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	role, err := s.store.FindRoleByName(ctx, domain.RoleUser)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	identity := &domain.Identity{
		FullName:     fullName,
		Email:        email,
		PasswordHash: string(hash),
		Role:         *role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.store.Create(ctx, identity)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("email", created.Email).Msg("identity registered")
	return created, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.Identity, error) {
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	if s.throttle != nil {
		locked, err := s.throttle.IsLocked(ctx, email)
		if err != nil {
			// A broken throttle must not take login down with it.
			s.log.Warn().Err(err).Msg("login throttle unavailable")
		} else if locked {
			return "", nil, domain.ErrTooManyAttempts
		}
	}

	identity, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)) != nil {
		if s.throttle != nil {
			_ = s.throttle.RecordFailure(ctx, email)
		}
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(identity.Email, map[string]any{
		"role": string(identity.Role.Name),
	})
	if err != nil {
		return "", nil, err
	}

	if s.throttle != nil {
		_ = s.throttle.Reset(ctx, email)
	}

	return token, identity, nil
}

// AllIdentities lists every identity. Authorization happens at the route
// guard; the service itself is policy-free.
func (s *AuthService) AllIdentities(ctx context.Context) ([]domain.Identity, error) {
	return s.store.List(ctx)
}
