package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/acme/dialburst/internal/api"
	"github.com/acme/dialburst/internal/api/handlers"
	"github.com/acme/dialburst/internal/app"
	"github.com/acme/dialburst/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	configPath := flag.String("config", getEnv("CONFIG_FILE", "configs/config.yaml"), "path to configuration file")
	flag.Parse()

	container, err := app.Build(ctx, *configPath)
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer container.Close(context.Background())

	shutdownTracing, err := telemetry.Setup(ctx, container.Config.Telemetry, container.Config.App.Name, container.Config.App.Version)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	handlerSet, err := handlers.NewHandlerSet(ctx, container)
	if err != nil {
		log.Fatalf("failed to build handlers: %v", err)
	}

	library, err := container.Library(ctx)
	if err != nil {
		log.Fatalf("failed to open audio library: %v", err)
	}

	server := api.NewServer(container, handlerSet, library)

	log.Printf("listening on port %d", container.Config.HTTP.Port)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("server terminated: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
