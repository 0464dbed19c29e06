package service

import "github.com/pw/identity-service/internal/core/domain"

// Decision is the authorization outcome for a single access rule. Denials
// are values, not errors; the transport layer maps them to responses.
type Decision int

const (
	Allowed Decision = iota
	Unauthenticated
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// RequireAuthenticated allows any populated principal.
func RequireAuthenticated(p *domain.Principal) Decision {
	if p == nil {
		return Unauthenticated
	}
	return Allowed
}

// RequireAnyRole allows a populated principal whose role name is an exact
// member of the given set. No prefix or case-insensitive matching.
func RequireAnyRole(p *domain.Principal, roles ...domain.RoleName) Decision {
	if p == nil {
		return Unauthenticated
	}
	for _, r := range roles {
		if p.Identity.Role.Name == r {
			return Allowed
		}
	}
	return Forbidden
}
