package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/acme/dialburst/internal/assets"
	"github.com/acme/dialburst/internal/config"
	"github.com/acme/dialburst/internal/events"
	"github.com/acme/dialburst/internal/infra/db"
	"github.com/acme/dialburst/internal/infra/redis"
	"github.com/acme/dialburst/internal/orchestrator"
	"github.com/acme/dialburst/internal/playback"
	"github.com/acme/dialburst/internal/registry"
	memstore "github.com/acme/dialburst/internal/registry/memory"
	"github.com/acme/dialburst/internal/registry/redisstore"
	"github.com/acme/dialburst/internal/repository"
	pgrepo "github.com/acme/dialburst/internal/repository/postgres"
	"github.com/acme/dialburst/internal/telephony"
	telephonyMock "github.com/acme/dialburst/internal/telephony/mock"
	"github.com/acme/dialburst/internal/telephony/twilio"
	"github.com/acme/dialburst/internal/tts"
	"github.com/acme/dialburst/internal/tts/elevenlabs"
	"github.com/acme/dialburst/pkg/logger"
)

// Container wires together shared infrastructure dependencies. Postgres,
// Redis and Kafka are optional; disabled backends stay nil and the
// components fall back to in-process equivalents.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Redis    *redis.Client

	components struct {
		once sync.Once
		err  error

		library      *assets.Library
		hub          *events.Hub
		kafkaSink    *events.KafkaSink
		store        registry.Store
		history      repository.HistoryRepository
		dialer       telephony.Dialer
		synthesizer  tts.Synthesizer
		builder      *playback.Builder
		orchestrator *orchestrator.Orchestrator
	}
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	container := &Container{
		Config: cfg,
		Logger: lg,
	}

	if cfg.Postgres.Enabled {
		pg, err := db.NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("bootstrap postgres: %w", err)
		}
		container.Postgres = pg
	}

	if cfg.Registry.Backend == "redis" {
		redisClient, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		container.Redis = redisClient
	}

	return container, nil
}

func (c *Container) initComponents(ctx context.Context) error {
	c.components.once.Do(func() {
		cfg := c.Config

		library, err := assets.NewLibrary(cfg.Assets.Dir, cfg.Assets.ScratchDir, cfg.App.BaseURL, cfg.Assets.PublicPath)
		if err != nil {
			c.components.err = err
			return
		}
		c.components.library = library

		hub := events.NewHub(cfg.Events.BufferSize, c.Logger.Named("events"))
		if cfg.Kafka.Enabled {
			sink, err := events.NewKafkaSink(cfg.Kafka)
			if err != nil {
				c.components.err = fmt.Errorf("bootstrap kafka sink: %w", err)
				return
			}
			c.components.kafkaSink = sink
			hub.AddSink(sink)
		}
		c.components.hub = hub

		switch cfg.Registry.Backend {
		case "redis":
			c.components.store = redisstore.NewStore(c.Redis.Inner(), cfg.Registry.TerminalTTL)
		default:
			c.components.store = memstore.NewStore(cfg.Registry.TerminalTTL)
		}

		if c.Postgres != nil {
			repo := pgrepo.NewHistoryRepository(c.Postgres.DB())
			if err := repo.EnsureSchema(ctx); err != nil {
				c.components.err = fmt.Errorf("ensure history schema: %w", err)
				return
			}
			c.components.history = repo
		} else {
			c.components.history = repository.NoopHistory{}
		}

		switch cfg.Telephony.Provider {
		case "mock":
			c.components.dialer = telephonyMock.NewDialer()
		default:
			dialer, err := twilio.NewClient(cfg.Telephony)
			if err != nil {
				c.components.err = fmt.Errorf("bootstrap telephony client: %w", err)
				return
			}
			c.components.dialer = dialer
		}

		if cfg.Synthesis.APIKey != "" {
			synth, err := elevenlabs.NewClient(cfg.Synthesis)
			if err != nil {
				c.components.err = fmt.Errorf("bootstrap synthesizer: %w", err)
				return
			}
			c.components.synthesizer = synth
		}

		c.components.builder = playback.NewBuilder(library, c.components.synthesizer, c.Logger.Named("playback"))

		c.components.orchestrator = orchestrator.New(
			orchestrator.Config{
				BaseURL:       cfg.App.BaseURL,
				LaunchStagger: cfg.Batch.LaunchStagger,
			},
			c.components.dialer,
			c.components.store,
			library,
			hub,
			c.components.history,
			c.Logger.Named("orchestrator"),
		)
	})
	return c.components.err
}

// Library exposes the audio asset library.
func (c *Container) Library(ctx context.Context) (*assets.Library, error) {
	if err := c.initComponents(ctx); err != nil {
		return nil, err
	}
	return c.components.library, nil
}

// Hub exposes the live event hub.
func (c *Container) Hub(ctx context.Context) (*events.Hub, error) {
	if err := c.initComponents(ctx); err != nil {
		return nil, err
	}
	return c.components.hub, nil
}

// Registry exposes the call record store.
func (c *Container) Registry(ctx context.Context) (registry.Store, error) {
	if err := c.initComponents(ctx); err != nil {
		return nil, err
	}
	return c.components.store, nil
}

// History exposes the audit repository.
func (c *Container) History(ctx context.Context) (repository.HistoryRepository, error) {
	if err := c.initComponents(ctx); err != nil {
		return nil, err
	}
	return c.components.history, nil
}

// Dialer exposes the telephony client.
func (c *Container) Dialer(ctx context.Context) (telephony.Dialer, error) {
	if err := c.initComponents(ctx); err != nil {
		return nil, err
	}
	return c.components.dialer, nil
}

// PlaybackBuilder exposes the response document builder.
func (c *Container) PlaybackBuilder(ctx context.Context) (*playback.Builder, error) {
	if err := c.initComponents(ctx); err != nil {
		return nil, err
	}
	return c.components.builder, nil
}

// Orchestrator exposes the batch orchestrator.
func (c *Container) Orchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	if err := c.initComponents(ctx); err != nil {
		return nil, err
	}
	return c.components.orchestrator, nil
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.components.kafkaSink != nil {
		if err := c.components.kafkaSink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka sink close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
