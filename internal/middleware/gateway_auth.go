package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/pkg/response"
)

// Identity headers exchanged with a ForwardAuth gateway
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

const identityKey = "identity"

// Identity is the authenticated caller
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// WriteHeaders hands the identity to the gateway on a verify response
func (id *Identity) WriteHeaders(c *fiber.Ctx) {
	c.Set(HeaderUserID, id.UserID)
	c.Set(HeaderUserEmail, id.Email)
	if id.Name != "" {
		c.Set(HeaderUserName, id.Name)
	}
}

// IdentityFromHeaders reads the identity a gateway attached to the request
func IdentityFromHeaders(c *fiber.Ctx) (*Identity, bool) {
	id := &Identity{
		UserID: c.Get(HeaderUserID),
		Email:  c.Get(HeaderUserEmail),
		Name:   c.Get(HeaderUserName),
	}
	return id, id.UserID != ""
}

// GatewayAuth trusts identity headers set by a gateway that already ran
// /auth/verify. Only mount it behind such a gateway.
func GatewayAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := IdentityFromHeaders(c)
		if !ok {
			return response.Unauthorized(c, "Missing user identity headers")
		}
		setIdentity(c, id)
		return c.Next()
	}
}

func setIdentity(c *fiber.Ctx, id *Identity) {
	c.Locals(identityKey, id)
}

// CurrentIdentity returns the caller set by an auth middleware, or nil
func CurrentIdentity(c *fiber.Ctx) *Identity {
	id, _ := c.Locals(identityKey).(*Identity)
	return id
}

// GetUserID returns the caller's user ID, or "" on unauthenticated routes
func GetUserID(c *fiber.Ctx) string {
	if id := CurrentIdentity(c); id != nil {
		return id.UserID
	}
	return ""
}
