package handler

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wedding-marketplace-api/internal/middleware"
	"github.com/iliyamo/wedding-marketplace-api/internal/model"
	"github.com/iliyamo/wedding-marketplace-api/internal/service"
)

// AuthHandler serves /api/v1/auth.
type AuthHandler struct {
	Sessions *service.SessionManager
}

func NewAuthHandler(s *service.SessionManager) *AuthHandler {
	return &AuthHandler{Sessions: s}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
	UserType string `json:"userType" validate:"required,oneof=couple vendor guest"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type emailReq struct {
	Email string `json:"email" validate:"required,email"`
}

type resetReq struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type tokenReq struct {
	Token string `json:"token" validate:"required"`
}

// Register: create user and return tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Sessions.Register(ctx, service.RegisterInput{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
		Phone:    strings.TrimSpace(req.Phone),
		UserType: model.UserType(req.UserType),
	})
	if err != nil {
		return err
	}
	return created(c, res, "User registered successfully")
}

// Login: verify credentials and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Sessions.Login(ctx, strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return err
	}
	return ok(c, res, "Login successful")
}

// Refresh: exchange a refresh token for a new pair.  The old token is not
// revoked.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	pair, err := h.Sessions.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return err
	}
	return ok(c, pair, "Token refreshed successfully")
}

// Logout: revoke the given refresh token.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Sessions.Logout(ctx, strings.TrimSpace(req.RefreshToken)); err != nil {
		return err
	}
	return messageOnly(c, "Logged out successfully")
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Sessions.ForgotPassword(ctx, strings.TrimSpace(req.Email)); err != nil {
		return err
	}
	return messageOnly(c, service.MsgResetRequested)
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Sessions.ResetPassword(ctx, strings.TrimSpace(req.Token), req.Password); err != nil {
		return err
	}
	return messageOnly(c, "Password reset successful")
}

// SendVerification mails a verification link to the authenticated user.
func (h *AuthHandler) SendVerification(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Sessions.SendVerification(ctx, middleware.PrincipalID(c)); err != nil {
		return err
	}
	return messageOnly(c, "Verification email sent")
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req tokenReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Sessions.VerifyEmail(ctx, strings.TrimSpace(req.Token)); err != nil {
		return err
	}
	return messageOnly(c, "Email verified successfully")
}
