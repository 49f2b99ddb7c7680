// Package router registers every HTTP route of the API on an echo
// instance.  Handlers and middleware are built by the caller.
package router

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wedding-marketplace-api/internal/handler"
	"github.com/iliyamo/wedding-marketplace-api/internal/middleware"
	"github.com/iliyamo/wedding-marketplace-api/internal/model"
)

// Deps is everything RegisterRoutes needs.
type Deps struct {
	Auth    *handler.AuthHandler
	Users   *handler.UserHandler
	Admin   *handler.AdminHandler
	Guard   middleware.Authenticator
	Limiter echo.MiddlewareFunc // applied to the unauthenticated auth routes; nil disables
	Started time.Time
}

// RegisterRoutes mounts /health and the /api/v1 tree.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/health", handler.Health(d.Started))

	api := e.Group("/api/v1")
	registerAuth(api, d)
	registerUsers(api, d)
	registerAdmin(api, d)
}

func limited(d Deps) []echo.MiddlewareFunc {
	if d.Limiter == nil {
		return nil
	}
	return []echo.MiddlewareFunc{d.Limiter}
}

// registerAuth mounts the session endpoints.  Everything except
// send-verification works without a bearer token.
func registerAuth(api *echo.Group, d Deps) {
	g := api.Group("/auth", limited(d)...)
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/refresh", d.Auth.Refresh)
	g.POST("/logout", d.Auth.Logout)
	g.POST("/forgot-password", d.Auth.ForgotPassword)
	g.POST("/reset-password", d.Auth.ResetPassword)
	g.POST("/verify-email", d.Auth.VerifyEmail)
	g.POST("/send-verification", d.Auth.SendVerification, middleware.Authenticate(d.Guard))
}

// anyUserType rejects tokens whose role is not a marketplace user type.
var anyUserType = middleware.RequireUserType(model.UserTypeCouple, model.UserTypeVendor, model.UserTypeGuest)

func registerUsers(api *echo.Group, d Deps) {
	me := api.Group("/users/me", middleware.Authenticate(d.Guard), anyUserType)
	me.GET("", d.Users.Me)
	me.PUT("", d.Users.UpdateMe)
	me.DELETE("", d.Users.DeleteMe)
	me.PUT("/password", d.Users.ChangePassword)
}

func registerAdmin(api *echo.Group, d Deps) {
	auth := api.Group("/admin/auth", limited(d)...)
	auth.POST("/login", d.Admin.Login)
	auth.POST("/refresh", d.Admin.Refresh)

	admin := api.Group("/admin", middleware.AdminAuthenticate(d.Guard))
	admin.GET("/me", d.Admin.Me)
	admin.PUT("/users/:id/deactivate", d.Admin.DeactivateUser, middleware.RequireSuperAdmin())
}
