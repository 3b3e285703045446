package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/service"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/pkg/response"
)

const maxClipSize = 50 * 1024 * 1024 // 50MB

type ClipHandler struct {
	service *service.ClipService
}

func NewClipHandler(svc *service.ClipService) *ClipHandler {
	return &ClipHandler{service: svc}
}

// Upload handles POST /api/sessions/:sessionId/layers/:layerId/clip
func (h *ClipHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxClipSize {
		return response.ValidationError(c, "File size exceeds 50MB limit", map[string]interface{}{
			"maxSize":  maxClipSize,
			"fileSize": file.Size,
		})
	}

	contentType := file.Header.Get("Content-Type")
	if !service.IsClipContentType(contentType) {
		return response.ValidationError(c, "Invalid file type. Supported: GIF, MP4, MOV, WEBM", map[string]interface{}{
			"contentType": contentType,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	name := c.FormValue("name")
	if name == "" {
		name = file.Filename
	}

	sess, err := h.service.UploadClip(c.Context(), c.Params("sessionId"), c.Params("layerId"), name, contentType, f)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Created(c, sessionResponse(sess))
}
