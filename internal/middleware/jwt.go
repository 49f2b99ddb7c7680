package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wedding-marketplace-api/internal/apperror"
	"github.com/iliyamo/wedding-marketplace-api/internal/token"
)

// Authenticator validates an access token and confirms the principal is
// still active.  *service.SessionManager implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string, want token.PrincipalKind) (*token.Claims, error)
}

// Authenticate guards user routes.  It reads `Authorization: Bearer <jwt>`,
// verifies it through auth and stores the claims in the context.  Failures
// are returned as *apperror.Error so the central error handler renders
// them.
func Authenticate(auth Authenticator) echo.MiddlewareFunc {
	return bearer(auth, token.PrincipalUser)
}

// AdminAuthenticate is Authenticate for back-office routes.  User tokens are
// rejected here and admin tokens are rejected by Authenticate.
func AdminAuthenticate(auth Authenticator) echo.MiddlewareFunc {
	return bearer(auth, token.PrincipalAdmin)
}

func bearer(auth Authenticator, want token.PrincipalKind) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return apperror.Unauthorized("No token provided")
			}
			raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if raw == "" {
				return apperror.Unauthorized("No token provided")
			}

			claims, err := auth.Authenticate(c.Request().Context(), raw, want)
			if err != nil {
				return err
			}
			setClaims(c, claims)
			return next(c)
		}
	}
}
