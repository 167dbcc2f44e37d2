package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/chatt-server/internal/config"
	"github.com/vovakirdan/chatt-server/internal/core"
	"github.com/vovakirdan/chatt-server/internal/metrics"
	"github.com/vovakirdan/chatt-server/internal/store"
	"github.com/vovakirdan/chatt-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/chatt-server/internal/transport/http"
)

// App wires together core, storage and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	registry        *core.Registry
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := core.Options{
		Logger:         logger,
		Metrics:        metrics.New(promRegistry),
		GossipInterval: cfg.GossipInterval,
		WriteTimeout:   cfg.WriteTimeout,
		MaxNameLength:  cfg.MaxNameLength,
	}

	var st store.Store
	if cfg.DatabasePath != "" {
		sqliteStore, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		st = sqliteStore
		opts.Catalog = st
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")
	}

	registry := core.NewRegistry(opts)
	if err := seedRooms(ctx, registry, st, cfg.DefaultRooms, logger); err != nil {
		registry.Close()
		if st != nil {
			st.Close()
		}
		return nil, err
	}

	server := transporthttp.NewServer(registry, promRegistry, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		registry:        registry,
		store:           st,
		log:             logger,
	}, nil
}

// seedRooms restores the recorded catalog, or creates the configured
// default rooms when there is nothing to restore.
func seedRooms(ctx context.Context, registry *core.Registry, st store.RoomStore, defaults []string, logger *zerolog.Logger) error {
	if st != nil {
		rooms, err := st.ListRooms(ctx)
		if err != nil {
			return fmt.Errorf("load rooms: %w", err)
		}
		for _, room := range rooms {
			if _, err := registry.RestoreRoom(room.ID, room.Name); err != nil {
				return err
			}
		}
		if len(rooms) > 0 {
			logger.Info().Int("rooms", len(rooms)).Msg("room catalog restored")
			return nil
		}
	}

	for _, name := range defaults {
		room := registry.CreateRoom(ctx, name)
		logger.Debug().Int64("room_id", room.ID()).Str("room", room.Name()).Msg("default room created")
	}
	return nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", a.server.Addr).Msg("chat server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		err := a.server.Shutdown(shutdownCtx)
		// Websocket connections are hijacked and outlive Shutdown; closing
		// the registry closes every session channel.
		a.registry.Close()
		return err
	})

	err := g.Wait()
	a.cleanup()
	return err
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
