package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/acme/dialburst/internal/app"
	"github.com/acme/dialburst/internal/assets"
	"github.com/acme/dialburst/internal/events"
	"github.com/acme/dialburst/internal/orchestrator"
	"github.com/acme/dialburst/internal/playback"
	"github.com/acme/dialburst/internal/repository"
	"github.com/acme/dialburst/internal/telephony"
)

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	container *app.Container
	orch      *orchestrator.Orchestrator
	hub       *events.Hub
	library   *assets.Library
	builder   *playback.Builder
	dialer    telephony.Dialer
	history   repository.HistoryRepository
	keepAlive time.Duration
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(ctx context.Context, container *app.Container) (*HandlerSet, error) {
	orch, err := container.Orchestrator(ctx)
	if err != nil {
		return nil, err
	}
	hub, err := container.Hub(ctx)
	if err != nil {
		return nil, err
	}
	library, err := container.Library(ctx)
	if err != nil {
		return nil, err
	}
	builder, err := container.PlaybackBuilder(ctx)
	if err != nil {
		return nil, err
	}
	dialer, err := container.Dialer(ctx)
	if err != nil {
		return nil, err
	}
	history, err := container.History(ctx)
	if err != nil {
		return nil, err
	}

	return &HandlerSet{
		container: container,
		orch:      orch,
		hub:       hub,
		library:   library,
		builder:   builder,
		dialer:    dialer,
		history:   history,
		keepAlive: container.Config.Events.KeepAliveInterval,
	}, nil
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)

	app.Get("/webhooks/voice", h.voiceWebhook)
	app.Post("/webhooks/voice", h.voiceWebhook)
	app.Post("/webhooks/status", h.statusWebhook)

	api := app.Group("/api")
	v1 := api.Group("/v1")

	batches := v1.Group("/batches")
	batches.Post("/", h.startBatch)
	batches.Post("/stop", h.stopBatches)

	v1.Get("/events", h.streamEvents)
	v1.Get("/account", h.fetchAccount)
	v1.Get("/history", h.listHistory)

	audio := v1.Group("/audio")
	audio.Get("/", h.listAudio)
	audio.Put("/:name", h.renameAudio)
	audio.Delete("/:name", h.deleteAudio)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.container.Logger.Error("request failed", zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": ctx.GetRespHeader("Trace-Id"),
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.Context(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)

	if h.container.Postgres != nil {
		if err := h.container.Postgres.DB().PingContext(healthCtx); err != nil {
			errs["postgres"] = err.Error()
		}
	}

	if h.container.Redis != nil {
		if err := h.container.Redis.Inner().Ping(healthCtx).Err(); err != nil {
			errs["redis"] = err.Error()
		}
	}

	status := fiber.StatusOK
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
	}

	return ctx.Status(status).JSON(fiber.Map{"status": "ok", "errors": errs})
}
