package handler

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wedding-marketplace-api/internal/middleware"
	"github.com/iliyamo/wedding-marketplace-api/internal/service"
)

// AdminHandler serves /api/v1/admin.  Admin tokens carry kind=admin and are
// refused by the user routes, and the reverse.
type AdminHandler struct {
	Sessions *service.SessionManager
	Profiles *service.ProfileService
}

func NewAdminHandler(s *service.SessionManager, p *service.ProfileService) *AdminHandler {
	return &AdminHandler{Sessions: s, Profiles: p}
}

func (h *AdminHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Sessions.AdminLogin(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return err
	}
	return ok(c, res, "Login successful")
}

func (h *AdminHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	pair, err := h.Sessions.AdminRefresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return err
	}
	return ok(c, pair, "Token refreshed successfully")
}

func (h *AdminHandler) Me(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	v, err := h.Profiles.AdminProfile(ctx, middleware.PrincipalID(c))
	if err != nil {
		return err
	}
	return ok(c, v, "")
}

// DeactivateUser soft-deletes a marketplace user.  Super admins only.
func (h *AdminHandler) DeactivateUser(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Profiles.DeleteAccount(ctx, c.Param("id")); err != nil {
		return err
	}
	return messageOnly(c, "User deactivated successfully")
}
