package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/pw/identity-service/internal/api/middleware"
	"github.com/pw/identity-service/internal/core/domain"
)

// ctxPrincipal extracts the principal injected by the Authenticate middleware
// and fast-fails before any service call. A missing principal on a guarded
// route means the guard was not wired; treat it as unauthenticated rather
// than panic.
func ctxPrincipal(c echo.Context) (*domain.Principal, error) {
	p := middleware.Principal(c)
	if p == nil {
		return nil, domain.ErrUnauthenticated
	}
	return p, nil
}
