package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"

	"github.com/acme/dialburst/internal/api/handlers"
	"github.com/acme/dialburst/internal/app"
	"github.com/acme/dialburst/internal/assets"
)

// Server wraps the Fiber application.
type Server struct {
	app      *fiber.App
	deps     *app.Container
	handlers *handlers.HandlerSet
}

// NewServer constructs a new HTTP server.
func NewServer(deps *app.Container, handlerSet *handlers.HandlerSet, library *assets.Library) *Server {
	cfg := fiber.Config{
		ReadTimeout:  deps.Config.HTTP.ReadTimeout,
		WriteTimeout: deps.Config.HTTP.WriteTimeout,
		IdleTimeout:  deps.Config.HTTP.IdleTimeout,
		ErrorHandler: handlerSet.ErrorHandler,
	}

	fiberApp := fiber.New(cfg)
	fiberApp.Use(otelfiber.Middleware())

	// The provider fetches playable audio from these paths.
	fiberApp.Static(deps.Config.Assets.PublicPath, library.Dir())
	fiberApp.Static(assets.ScratchPath, library.ScratchDir())

	handlerSet.Register(fiberApp)

	return &Server{app: fiberApp, deps: deps, handlers: handlerSet}
}

// Start begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.deps.Config.HTTP.Port)
	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
