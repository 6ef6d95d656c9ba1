package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"relaychat/pkg/errors"
)

const userIDKey = "uid"

// IdentityResolver turns a bearer token into a user id.
type IdentityResolver interface {
	ResolveToken(ctx context.Context, token string) (string, error)
}

type AuthMiddleware struct {
	resolver IdentityResolver
}

func NewAuthMiddleware(resolver IdentityResolver) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return errors.Unauthenticated("Authorization header is required", nil)
		}

		token := BearerToken(c.Request())
		if token == "" {
			return errors.Unauthenticated("Invalid authorization format", nil)
		}

		uid, err := m.resolver.ResolveToken(c.Request().Context(), token)
		if err != nil {
			return err
		}

		c.Set(userIDKey, uid)
		return next(c)
	}
}

// Resolve verifies a token outside of the middleware chain, e.g. on a socket upgrade.
func (m *AuthMiddleware) Resolve(ctx context.Context, token string) (string, error) {
	return m.resolver.ResolveToken(ctx, token)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get(echo.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// UserID returns the authenticated caller set by Authenticate.
func UserID(c echo.Context) string {
	uid, _ := c.Get(userIDKey).(string)
	return uid
}
