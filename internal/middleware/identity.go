package middleware

// identity.go holds the context keys set by the bearer middleware and the
// accessors handlers use to read them back.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wedding-marketplace-api/internal/token"
)

const (
	claimsKey    = "auth.claims"
	principalKey = "user_id"
	roleKey      = "role"
)

// ClaimsFrom returns the verified claims stored by Authenticate or
// AdminAuthenticate.
func ClaimsFrom(c echo.Context) (*token.Claims, bool) {
	cl, ok := c.Get(claimsKey).(*token.Claims)
	return cl, ok && cl != nil
}

// PrincipalID returns the authenticated principal id or "".
func PrincipalID(c echo.Context) string {
	if cl, ok := ClaimsFrom(c); ok {
		return cl.PrincipalID
	}
	return ""
}

// userID is the rate-limit identity: the principal id, or "anon".
func userID(c echo.Context) string {
	if id := PrincipalID(c); id != "" {
		return id
	}
	return "anon"
}

func setClaims(c echo.Context, cl *token.Claims) {
	c.Set(claimsKey, cl)
	c.Set(principalKey, cl.PrincipalID)
	c.Set(roleKey, cl.Role)
}
