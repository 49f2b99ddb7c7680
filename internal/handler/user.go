package handler

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wedding-marketplace-api/internal/middleware"
	"github.com/iliyamo/wedding-marketplace-api/internal/service"
)

// UserHandler serves the authenticated user's own resources under
// /api/v1/users/me.
type UserHandler struct {
	Profiles *service.ProfileService
}

func NewUserHandler(p *service.ProfileService) *UserHandler { return &UserHandler{Profiles: p} }

type updateProfileReq struct {
	Phone string `json:"phone" validate:"required,max=32"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

func (h *UserHandler) Me(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Profiles.Profile(ctx, middleware.PrincipalID(c))
	if err != nil {
		return err
	}
	return ok(c, p, "")
}

func (h *UserHandler) UpdateMe(c echo.Context) error {
	var req updateProfileReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.Profiles.UpdateProfile(ctx, middleware.PrincipalID(c), strings.TrimSpace(req.Phone))
	if err != nil {
		return err
	}
	return ok(c, p, "Profile updated successfully")
}

// DeleteMe soft-deletes the account.
func (h *UserHandler) DeleteMe(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Profiles.DeleteAccount(ctx, middleware.PrincipalID(c)); err != nil {
		return err
	}
	return messageOnly(c, "Account deleted successfully")
}

func (h *UserHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Profiles.ChangePassword(ctx, middleware.PrincipalID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return messageOnly(c, "Password changed successfully")
}
