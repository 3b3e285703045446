package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/service"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/pkg/response"
)

// ShareHandler hands the master GIF to the connected client's share sheet
// or clipboard
type ShareHandler struct {
	service *service.ShareService
}

func NewShareHandler(svc *service.ShareService) *ShareHandler {
	return &ShareHandler{service: svc}
}

// Share handles POST /api/sessions/:sessionId/share
func (h *ShareHandler) Share(c *fiber.Ctx) error {
	result, err := h.service.Share(c.Context(), c.Params("sessionId"))
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}

// Copy handles POST /api/sessions/:sessionId/copy
func (h *ShareHandler) Copy(c *fiber.Ctx) error {
	result, err := h.service.CopyLink(c.Context(), c.Params("sessionId"))
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, result)
}
