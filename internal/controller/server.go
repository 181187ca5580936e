package controller

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/FoxRefire/SpiceDL/internal/config"
	"github.com/FoxRefire/SpiceDL/internal/controller/api"
	"github.com/FoxRefire/SpiceDL/internal/core/download"
	"github.com/FoxRefire/SpiceDL/internal/core/event"
	"github.com/FoxRefire/SpiceDL/internal/core/job"
	"github.com/FoxRefire/SpiceDL/internal/core/spotdl"
)

// Run wires the core together and serves HTTP until SIGINT/SIGTERM or ctx
// cancellation.
func Run(ctx context.Context, cfg *config.Config, store *config.Store) error {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Debug().Str("level", cfg.Logging.Level).Msg("log level configured")

	bus := event.NewBus()
	setupEventLogging(bus)

	registry := job.NewRegistry()
	orch := download.New(registry, bus, cfg.Downloads.Folder,
		download.WithFormat(cfg.Downloads.Format),
		download.WithLocator(func(ctx context.Context) (*spotdl.Tool, error) {
			return spotdl.LocateBinary(ctx, cfg.Spotdl.Binary)
		}),
	)

	for _, dep := range spotdl.Dependencies(ctx) {
		if dep.Available {
			log.Info().Str("dependency", dep.Name).Str("path", dep.Path).Msg("dependency found")
		} else {
			log.Warn().Str("dependency", dep.Name).Msg("dependency missing; downloads will fail until installed")
		}
	}

	e := echo.New()
	e.HideBanner = true

	api.SetupRouter(e, api.RouterConfig{
		Orchestrator: orch,
		Store:        store,
	})

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Info().Str("addr", addr).Str("folder", cfg.Downloads.Folder).Msg("HTTP server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down...")
	if n := orch.CancelActive(); n > 0 {
		log.Info().Int("jobs", n).Msg("cancelled active downloads")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	return nil
}

func setupEventLogging(bus event.Bus) {
	bus.Subscribe(event.JobCompleted, func(ev event.Event) {
		log.Info().Str("job_id", ev.Job.ID).Int("files", len(ev.Job.Files)).Msg("job completed")
	})
	bus.Subscribe(event.JobFailed, func(ev event.Event) {
		log.Warn().Str("job_id", ev.Job.ID).Str("error", ev.Job.Error).Msg("job failed")
	})
	bus.Subscribe(event.JobCancelled, func(ev event.Event) {
		log.Info().Str("job_id", ev.Job.ID).Msg("job cancelled")
	})
}
