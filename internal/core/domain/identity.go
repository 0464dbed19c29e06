package domain

import (
	"errors"
	"time"
)

// RoleName is the closed set of roles the service knows about. Adding a role
// is a deployment-time change, not runtime configuration.
type RoleName string

const (
	RoleUser       RoleName = "USER"
	RoleAdmin      RoleName = "ADMIN"
	RoleSuperAdmin RoleName = "SUPER_ADMIN"
)

// ParseRoleName maps a raw string to a RoleName, exact match only.
func ParseRoleName(s string) (RoleName, error) {
	switch RoleName(s) {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return RoleName(s), nil
	}
	return "", ErrRoleNotFound
}

// Role is immutable reference data, seeded once at startup.
type Role struct {
	ID          string    `json:"id"`
	Name        RoleName  `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Identity models an authenticated actor. Email is globally unique and the
// role is always present; an identity without a role cannot authenticate.
type Identity struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal is the request-scoped authentication context: the resolved
// identity plus its derived authorities. It lives only for the duration of a
// single request and is never shared across requests.
type Principal struct {
	Identity    Identity `json:"identity"`
	Authorities []string `json:"authorities"`
}

const authorityPrefix = "ROLE_"

// NewPrincipal derives the authority set from the identity's role.
func NewPrincipal(identity Identity) *Principal {
	return &Principal{
		Identity:    identity,
		Authorities: []string{authorityPrefix + string(identity.Role.Name)},
	}
}

// HasRole reports whether the principal's role name matches exactly.
func (p *Principal) HasRole(name RoleName) bool {
	return p != nil && p.Identity.Role.Name == name
}

var (
	// ErrMalformedToken means the bearer token could not be parsed into its
	// structural parts. Surfaced to the centralized error handler, never a
	// silent fall-through.
	ErrMalformedToken = errors.New("malformed token")

	// ErrIdentityNotFound covers both a login/lookup miss and a well-formed
	// token whose subject no longer exists (deletion after issuance, or
	// tampering).
	ErrIdentityNotFound = errors.New("identity not found")

	ErrIdentityExists     = errors.New("identity already exists")
	ErrRoleNotFound       = errors.New("role not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")

	// ErrUnauthenticated and ErrForbidden are the authorization outcomes:
	// the route requires an identity and none was established, or an identity
	// was established with an insufficient role.
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access forbidden")
)
