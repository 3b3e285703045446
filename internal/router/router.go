// Package router wires handlers, middleware and the WebSocket feed into a
// Fiber app.
package router

import (
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/config"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/handler"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/logging"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/middleware"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/service"
	ws "github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/websocket"
	"github.com/invisibleacropolis-ops/GIF-hold-sub001/pkg/response"
)

const bodyLimit = 50 * 1024 * 1024 // 50MB

// Deps holds everything the HTTP surface is built from
type Deps struct {
	Config   *config.Config
	Pipeline *service.PipelineService
	Dispatch *service.DispatchService
	Share    *service.ShareService
	Clips    *service.ClipService
	Hub      *ws.Hub
	Auth     *middleware.AuthMiddleware
	Limiter  *middleware.RateLimiter
	// Services reports which optional backends are configured, for /health
	Services map[string]bool
	Logger   *zap.Logger
	// Quiet disables the request log
	Quiet bool
}

// New creates the Fiber app with every route registered
func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler(logging.OrNop(d.Logger)),
		BodyLimit:    bodyLimit,
	})

	app.Use(recover.New())
	if !d.Quiet {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	Setup(app, d)
	return app
}

// Setup registers routes on app
func Setup(app *fiber.App, d Deps) {
	validate := handler.NewValidator()

	sessionHandler := handler.NewSessionHandler(d.Pipeline, validate)
	dispatchHandler := handler.NewDispatchHandler(d.Dispatch)
	shareHandler := handler.NewShareHandler(d.Share)
	clipHandler := handler.NewClipHandler(d.Clips)
	authHandler := handler.NewAuthHandler(d.Auth)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"services": d.Services,
		})
	})
	app.Get("/auth/verify", authHandler.Verify)

	authenticate := d.Auth.Authenticate()
	if d.Config.Server.AuthMode == config.AuthModeGateway {
		authenticate = middleware.GatewayAuth()
	}
	dispatchLimit := d.Limiter.DispatchLimit(d.Config.RateLimit.DispatchPerHour)
	shareLimit := d.Limiter.ShareLimit(d.Config.RateLimit.SharePerHour)

	api := app.Group("/api", authenticate)

	// Session routes
	sessions := api.Group("/sessions")
	sessions.Post("/", sessionHandler.Create)
	sessions.Get("/:sessionId", sessionHandler.Get)
	sessions.Delete("/:sessionId", sessionHandler.Delete)
	sessions.Get("/:sessionId/verdicts", sessionHandler.Verdicts)
	sessions.Post("/:sessionId/messages", sessionHandler.PostMessage)

	// Layer routes
	layers := sessions.Group("/:sessionId/layers/:layerId")
	layers.Put("/source", sessionHandler.SetSource)
	layers.Post("/clip", clipHandler.Upload)
	layers.Put("/streams/:stream/adjustments", sessionHandler.SetAdjustments)
	layers.Post("/streams/:stream/render", dispatchLimit, dispatchHandler.Render)
	layers.Put("/blend", sessionHandler.SetBlend)
	layers.Post("/blend", dispatchLimit, dispatchHandler.Blend)
	layers.Post("/reset", sessionHandler.Reset)

	// Master routes
	sessions.Put("/:sessionId/master", sessionHandler.SetMaster)
	sessions.Post("/:sessionId/master/generate", dispatchLimit, dispatchHandler.Master)
	sessions.Post("/:sessionId/share", shareLimit, shareHandler.Share)
	sessions.Post("/:sessionId/copy", shareLimit, shareHandler.Copy)

	// Job routes
	api.Get("/jobs/:jobId", dispatchHandler.Status)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/sessions/:sessionId", wsGuard(d), websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("sessionId")
		d.Hub.HandleConnection(c, sessionID, d.Pipeline.Notices(sessionID))
	}))
}

// wsGuard checks the token query parameter and the session before the
// connection is upgraded. Gateway mode relies on the gateway's headers.
func wsGuard(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d.Config.Server.AuthMode == config.AuthModeGateway {
			if _, ok := middleware.IdentityFromHeaders(c); !ok {
				return response.Unauthorized(c, "Missing user identity headers")
			}
		} else if _, ok := d.Auth.Verify(c.Query("token")); !ok {
			return response.Unauthorized(c, "Invalid or expired token")
		}

		if _, err := d.Pipeline.State(c.Context(), c.Params("sessionId")); err != nil {
			return response.NotFound(c, "Session not found")
		}
		return c.Next()
	}
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return response.FromStatus(c, fe.Code, fe.Message)
		}
		log.Error("unhandled request error", zap.String("path", c.Path()), zap.Error(err))
		return response.ServiceError(c, "Internal Server Error")
	}
}
