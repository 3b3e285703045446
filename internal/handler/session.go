package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/service"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/store"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/pkg/response"
)

// SessionHandler edits pipeline sessions and reports their readiness
type SessionHandler struct {
	service   *service.PipelineService
	validator *validator.Validate
}

func NewSessionHandler(svc *service.PipelineService, v *validator.Validate) *SessionHandler {
	return &SessionHandler{
		service:   svc,
		validator: v,
	}
}

func sessionResponse(sess *store.Session) model.SessionResponse {
	return model.SessionResponse{SessionID: sess.ID, State: sess.State}
}

// parse decodes and validates a JSON body. It returns false after writing
// the error response.
func parse(c *fiber.Ctx, v *validator.Validate, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, response.ValidationError(c, "Invalid request body", nil)
	}
	if err := v.Struct(req); err != nil {
		return false, response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	return true, nil
}

// Create handles POST /api/sessions
func (h *SessionHandler) Create(c *fiber.Ctx) error {
	var req model.CreateSessionRequest
	if len(c.Body()) > 0 {
		if ok, err := parse(c, h.validator, &req); !ok {
			return err
		}
	}

	sess, err := h.service.CreateSession(c.Context(), req.LayerCount)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Created(c, sessionResponse(sess))
}

// Get handles GET /api/sessions/:sessionId
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	sess, err := h.service.State(c.Context(), c.Params("sessionId"))
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, sessionResponse(sess))
}

// Delete handles DELETE /api/sessions/:sessionId
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.DeleteSession(c.Context(), c.Params("sessionId")); err != nil {
		return serviceError(c, err)
	}

	return response.NoContent(c)
}

// Verdicts handles GET /api/sessions/:sessionId/verdicts
func (h *SessionHandler) Verdicts(c *fiber.Ctx) error {
	report, err := h.service.Report(c.Context(), c.Params("sessionId"))
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, fiber.Map{
		"blocked": report.Blocked(),
		"report":  report,
	})
}

// SetSource handles PUT /api/sessions/:sessionId/layers/:layerId/source
func (h *SessionHandler) SetSource(c *fiber.Ctx) error {
	var req model.SourceClipRequest
	if ok, err := parse(c, h.validator, &req); !ok {
		return err
	}

	sess, err := h.service.SetSourceClip(c.Context(), c.Params("sessionId"), c.Params("layerId"), model.ClipRef{
		ID:   req.ID,
		URI:  req.URI,
		Name: req.Name,
	})
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, sessionResponse(sess))
}

// SetAdjustments handles PUT /api/sessions/:sessionId/layers/:layerId/streams/:stream/adjustments
func (h *SessionHandler) SetAdjustments(c *fiber.Ctx) error {
	tag, ok := streamParam(c)
	if !ok {
		return invalidStream(c)
	}

	var req model.AdjustmentsRequest
	if ok, err := parse(c, h.validator, &req); !ok {
		return err
	}

	sess, err := h.service.SetAdjustments(c.Context(), c.Params("sessionId"), c.Params("layerId"), tag, req.Settings())
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, sessionResponse(sess))
}

// SetBlend handles PUT /api/sessions/:sessionId/layers/:layerId/blend
func (h *SessionHandler) SetBlend(c *fiber.Ctx) error {
	var req model.LayerBlendRequest
	if ok, err := parse(c, h.validator, &req); !ok {
		return err
	}

	sess, err := h.service.SetLayerBlend(c.Context(), c.Params("sessionId"), c.Params("layerId"), req.Mode, *req.Opacity)
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, sessionResponse(sess))
}

// Reset handles POST /api/sessions/:sessionId/layers/:layerId/reset
func (h *SessionHandler) Reset(c *fiber.Ctx) error {
	sess, err := h.service.ResetLayer(c.Context(), c.Params("sessionId"), c.Params("layerId"))
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, sessionResponse(sess))
}

// SetMaster handles PUT /api/sessions/:sessionId/master
func (h *SessionHandler) SetMaster(c *fiber.Ctx) error {
	var req model.MasterRequest
	if ok, err := parse(c, h.validator, &req); !ok {
		return err
	}

	sess, err := h.service.SetMaster(c.Context(), c.Params("sessionId"), service.MasterSettings{
		Mode:       req.Mode,
		Opacity:    *req.Opacity,
		IsEnabled:  req.IsEnabled,
		ShareSetup: req.ShareSetup,
	})
	if err != nil {
		return serviceError(c, err)
	}

	return response.OK(c, sessionResponse(sess))
}

// PostMessage handles POST /api/sessions/:sessionId/messages
func (h *SessionHandler) PostMessage(c *fiber.Ctx) error {
	var req model.PostMessageRequest
	if ok, err := parse(c, h.validator, &req); !ok {
		return err
	}

	accepted, err := h.service.PostMessage(c.Context(), c.Params("sessionId"), req.Text, req.IsError)
	if err != nil {
		return serviceError(c, err)
	}

	return response.Accepted(c, model.PostMessageResponse{Accepted: accepted})
}
