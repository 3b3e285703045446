package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/service"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/pkg/response"
)

// DispatchHandler starts pipeline stages and reports job status
type DispatchHandler struct {
	service *service.DispatchService
}

func NewDispatchHandler(svc *service.DispatchService) *DispatchHandler {
	return &DispatchHandler{service: svc}
}

// Render handles POST /api/sessions/:sessionId/layers/:layerId/streams/:stream/render
func (h *DispatchHandler) Render(c *fiber.Ctx) error {
	tag, ok := streamParam(c)
	if !ok {
		return invalidStream(c)
	}

	result, err := h.service.StartRender(c.Context(), c.Params("sessionId"), c.Params("layerId"), tag)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Accepted(c, result)
}

// Blend handles POST /api/sessions/:sessionId/layers/:layerId/blend
func (h *DispatchHandler) Blend(c *fiber.Ctx) error {
	result, err := h.service.StartBlend(c.Context(), c.Params("sessionId"), c.Params("layerId"))
	if err != nil {
		return serviceError(c, err)
	}

	return response.Accepted(c, result)
}

// Master handles POST /api/sessions/:sessionId/master/generate
func (h *DispatchHandler) Master(c *fiber.Ctx) error {
	result, err := h.service.StartMaster(c.Context(), c.Params("sessionId"))
	if err != nil {
		return serviceError(c, err)
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/jobs/:jobId
func (h *DispatchHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.service.JobStatus(c.Context(), jobID)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, job)
}
