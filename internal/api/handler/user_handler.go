package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pw/identity-service/internal/core/ports"
)

type UserHandler struct {
	users ports.UserService
}

func NewUserHandler(users ports.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Me returns the authenticated identity.
//
// @Summary      Current identity
// @Tags         users
// @Produce      json
// @Success      200  {object}  domain.Identity
// @Failure      401  {object}  map[string]string
// @Router       /users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	principal, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, principal.Identity)
}

// List returns every identity. Route is guarded by ADMIN/SUPER_ADMIN.
//
// @Summary      List identities
// @Tags         users
// @Produce      json
// @Success      200  {array}   domain.Identity
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /users [get]
func (h *UserHandler) List(c echo.Context) error {
	identities, err := h.users.AllIdentities(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, identities)
}
