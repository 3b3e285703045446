package response

import "github.com/gofiber/fiber/v2"

// Error codes
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeStageBlocked    = "STAGE_BLOCKED"
	CodeRateLimited     = "RATE_LIMITED"
	CodeUnavailable     = "UNAVAILABLE"
	CodeServiceError    = "SERVICE_ERROR"
)

// Envelope is the body of every error response
type Envelope struct {
	Error Problem `json:"error"`
}

type Problem struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// BlockedDetails lists why a stage could not start
type BlockedDetails struct {
	Stage   string   `json:"stage"`
	Reasons []string `json:"reasons"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(Envelope{Error: Problem{Code: code, Message: message, Details: details}})
}

// FromStatus writes an error whose code follows from the HTTP status.
// Used for errors fiber raises itself, such as 404 on unknown routes or 413
// on oversized uploads.
func FromStatus(c *fiber.Ctx, status int, message string) error {
	return Error(c, status, codeFor(status), message, nil)
}

func codeFor(status int) string {
	switch {
	case status == fiber.StatusUnauthorized:
		return CodeUnauthorized
	case status == fiber.StatusNotFound || status == fiber.StatusMethodNotAllowed:
		return CodeNotFound
	case status == fiber.StatusConflict:
		return CodeConflict
	case status == fiber.StatusTooManyRequests:
		return CodeRateLimited
	case status == fiber.StatusServiceUnavailable:
		return CodeUnavailable
	case status >= 400 && status < 500:
		return CodeValidationError
	default:
		return CodeServiceError
	}
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, CodeConflict, message, nil)
}

// StageBlocked answers a dispatch refused by a blocked verdict
func StageBlocked(c *fiber.Ctx, stage string, reasons []string) error {
	return Error(c, fiber.StatusUnprocessableEntity, CodeStageBlocked, stage+" stage is blocked",
		BlockedDetails{Stage: stage, Reasons: reasons})
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", nil)
}

func Unavailable(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusServiceUnavailable, CodeUnavailable, message, nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
