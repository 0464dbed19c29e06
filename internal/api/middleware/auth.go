package middleware

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pw/identity-service/internal/api/metrics"
	"github.com/pw/identity-service/internal/core/domain"
	"github.com/pw/identity-service/internal/core/ports"
)

// principalKey is the echo context key the middleware populates and the
// handlers/guards read. Request-scoped only.
const principalKey = "auth.principal"

const bearerPrefix = "Bearer "

// Principal returns the authenticated principal for the request, or nil when
// the request is anonymous.
func Principal(c echo.Context) *domain.Principal {
	p, _ := c.Get(principalKey).(*domain.Principal)
	return p
}

// SetPrincipal injects a principal directly. Intended for tests.
func SetPrincipal(c echo.Context, p *domain.Principal) {
	c.Set(principalKey, p)
}

// Authenticate runs once per request, before route handlers, and establishes
// (or declines to establish) the request's principal.
//
// Requests without a Bearer header pass through anonymous. A token that
// cannot be parsed, or a parsable token naming an unknown identity, is an
// error and goes to the centralized handler. A well-formed token that fails
// validation (expired, forged, wrong subject) also passes through anonymous:
// open routes keep working and protected routes deny at the guard.
func Authenticate(tokens ports.TokenService, store ports.IdentityStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, bearerPrefix) {
				return next(c)
			}
			token := strings.TrimSpace(header[len(bearerPrefix):])

			subject, err := tokens.ExtractSubject(token)
			if err != nil {
				metrics.TokenValidationsTotal.WithLabelValues("malformed").Inc()
				return domain.ErrMalformedToken
			}

			// Re-entrancy guard: an already-populated context is not
			// re-authenticated.
			if Principal(c) != nil {
				return next(c)
			}

			identity, err := store.FindByEmail(c.Request().Context(), subject)
			if err != nil {
				if errors.Is(err, domain.ErrIdentityNotFound) {
					// A well-formed token for a nonexistent identity means
					// deletion after issuance or tampering. Not anonymous.
					metrics.TokenValidationsTotal.WithLabelValues("unknown_subject").Inc()
					return domain.ErrIdentityNotFound
				}
				return err
			}

			if !tokens.IsValid(token, identity.Email) {
				metrics.TokenValidationsTotal.WithLabelValues("invalid").Inc()
				return next(c)
			}

			metrics.TokenValidationsTotal.WithLabelValues("valid").Inc()
			c.Set(principalKey, domain.NewPrincipal(*identity))
			return next(c)
		}
	}
}
