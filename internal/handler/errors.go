package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/notify"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/service"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/pkg/response"
)

// serviceError maps a service error to its HTTP response
func serviceError(c *fiber.Ctx, err error) error {
	var blocked *service.BlockedError
	switch {
	case errors.As(err, &blocked):
		return response.StageBlocked(c, string(blocked.Stage), blocked.Reasons)
	case errors.Is(err, service.ErrSessionNotFound):
		return response.NotFound(c, "Session not found")
	case errors.Is(err, service.ErrLayerNotFound):
		return response.NotFound(c, "Layer not found")
	case errors.Is(err, service.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, service.ErrUnknownStream):
		return response.ValidationError(c, "Unknown stream", nil)
	case errors.Is(err, service.ErrAlreadyGenerating),
		errors.Is(err, service.ErrMasterDisabled),
		errors.Is(err, service.ErrNothingToShare),
		errors.Is(err, notify.ErrNoReceiver):
		return response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrStorageUnavailable):
		return response.Unavailable(c, err.Error())
	}
	return response.ServiceError(c, err.Error())
}

// streamParam reads the :stream route parameter
func streamParam(c *fiber.Ctx) (model.StreamTag, bool) {
	return model.ParseStreamTag(c.Params("stream"))
}

func invalidStream(c *fiber.Ctx) error {
	return response.ValidationError(c, "Stream must be A or B", fiber.Map{"stream": c.Params("stream")})
}
