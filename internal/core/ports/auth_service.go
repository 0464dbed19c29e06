package ports

import (
	"context"
	"time"

	"github.com/pw/identity-service/internal/core/domain"
)

// TokenService issues and validates signed, time-bounded identity tokens.
// Both operations are pure functions of input, clock, and key, and are safe
// to call concurrently.
type TokenService interface {
	// Issue mints a token for the given subject (the identity's email) with
	// any extra claims merged into the payload.
	Issue(subject string, extraClaims map[string]any) (string, error)

	// ExtractSubject parses the subject out of a token without judging its
	// validity. Returns domain.ErrMalformedToken when the string cannot be
	// parsed into payload and signature.
	ExtractSubject(token string) (string, error)

	// IsValid reports whether the token's signature verifies, it has not
	// expired, and its subject equals expectedSubject. All violations
	// collapse to false; it never errors for a structurally valid token.
	IsValid(token string, expectedSubject string) bool

	// TTL is the configured token lifetime, exposed so the login response
	// can report expires_in.
	TTL() time.Duration
}

// AuthService implements registration and login.
type AuthService interface {
	Register(ctx context.Context, fullName, email, password string) (*domain.Identity, error)
	Login(ctx context.Context, email, password string) (string, *domain.Identity, error)
}

// UserService exposes read access to identities for the user routes.
type UserService interface {
	AllIdentities(ctx context.Context) ([]domain.Identity, error)
}

// LoginThrottle counts failed login attempts per subject and reports when a
// subject is locked out.
type LoginThrottle interface {
	IsLocked(ctx context.Context, email string) (bool, error)
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}
