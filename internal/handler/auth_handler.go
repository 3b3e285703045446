package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/middleware"
)

// AuthHandler handles ForwardAuth verification for an API gateway
type AuthHandler struct {
	auth *middleware.AuthMiddleware
}

func NewAuthHandler(auth *middleware.AuthMiddleware) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Verify handles GET /auth/verify.
// Returns 200 with X-User-* headers on success, 401 on failure.
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	token, ok := middleware.BearerToken(c.Get("Authorization"))
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	id, ok := h.auth.Verify(token)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	id.WriteHeaders(c)
	return c.SendStatus(fiber.StatusOK)
}
