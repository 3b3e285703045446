package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/auth"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/pkg/response"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	verifier  auth.TokenVerifier
	jwtSecret string // fallback for legacy tokens
}

// NewAuthMiddleware creates auth middleware. Tokens are checked against the
// verifier first and then, when jwtSecret is set, as legacy HMAC tokens.
// Either may be omitted.
func NewAuthMiddleware(verifier auth.TokenVerifier, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:  verifier,
		jwtSecret: jwtSecret,
	}
}

// Verify resolves a raw bearer token to an identity
func (m *AuthMiddleware) Verify(tokenString string) (*Identity, bool) {
	if m.verifier != nil {
		if claims, err := m.verifier.Validate(tokenString); err == nil {
			return &Identity{UserID: claims.UserID, Email: claims.Email, Name: claims.DisplayName()}, true
		}
	}
	if m.jwtSecret != "" {
		if claims, err := auth.ValidateLegacyToken(tokenString, m.jwtSecret); err == nil {
			return &Identity{UserID: claims.UserID, Email: claims.Email}, true
		}
	}
	return nil, false
}

// Configured reports whether any verification method is available
func (m *AuthMiddleware) Configured() bool {
	return m.verifier != nil || m.jwtSecret != ""
}

// Authenticate validates JWT token from Authorization header
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := BearerToken(c.Get("Authorization"))
		if !ok {
			if c.Get("Authorization") == "" {
				return response.Unauthorized(c, "Missing authorization header")
			}
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		if !m.Configured() {
			return response.Unauthorized(c, "Authentication not configured")
		}

		id, ok := m.Verify(tokenString)
		if !ok {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		setIdentity(c, id)
		return c.Next()
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
