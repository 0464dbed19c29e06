package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/pw/identity-service/internal/api/metrics"
	"github.com/pw/identity-service/internal/core/domain"
	"github.com/pw/identity-service/internal/core/service"
)

// RequireAuthenticated guards a route that any authenticated principal may
// use.
func RequireAuthenticated() echo.MiddlewareFunc {
	return guard(func(p *domain.Principal) service.Decision {
		return service.RequireAuthenticated(p)
	})
}

// RequireAnyRole guards a route that only principals holding one of the
// given roles may use.
func RequireAnyRole(roles ...domain.RoleName) echo.MiddlewareFunc {
	return guard(func(p *domain.Principal) service.Decision {
		return service.RequireAnyRole(p, roles...)
	})
}

// guard evaluates an access rule against the request's principal and maps
// denials to the domain errors the centralized handler turns into 401/403.
func guard(rule func(*domain.Principal) service.Decision) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			decision := rule(Principal(c))
			metrics.AuthzDecisionsTotal.WithLabelValues(decision.String()).Inc()

			switch decision {
			case service.Allowed:
				return next(c)
			case service.Forbidden:
				return domain.ErrForbidden
			default:
				return domain.ErrUnauthenticated
			}
		}
	}
}
