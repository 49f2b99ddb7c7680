package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wedding-marketplace-api/internal/apperror"
	"github.com/iliyamo/wedding-marketplace-api/internal/model"
	"github.com/iliyamo/wedding-marketplace-api/internal/token"
)

const msgForbidden = "You do not have permission to access this resource"

// RequireUserType lets the request through only when the authenticated
// user's type is one of types.  It must run after Authenticate.
func RequireUserType(types ...model.UserType) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[string(t)] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cl, ok := ClaimsFrom(c)
			if !ok {
				return apperror.Unauthorized("Authentication required")
			}
			if cl.Principal == token.PrincipalAdmin || !allowed[cl.Role] {
				return apperror.Forbidden(msgForbidden)
			}
			return next(c)
		}
	}
}

// RequireSuperAdmin must run after AdminAuthenticate.
func RequireSuperAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cl, ok := ClaimsFrom(c)
			if !ok {
				return apperror.Unauthorized("Authentication required")
			}
			if cl.Principal != token.PrincipalAdmin || cl.Role != string(model.AdminRoleSuperAdmin) {
				return apperror.Forbidden("Super admin access required")
			}
			return next(c)
		}
	}
}
