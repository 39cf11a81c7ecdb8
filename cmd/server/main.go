package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/baxromumarov/uni-recruit/internal/api"
	"github.com/baxromumarov/uni-recruit/internal/bootstrap"
	"github.com/baxromumarov/uni-recruit/internal/config"
	"github.com/baxromumarov/uni-recruit/internal/core"
)

const runDrainTimeout = 2 * time.Minute

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := bootstrap.Setup(ctx, cfg, nil)
	if err != nil {
		slog.Error("failed to set up storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	defer comps.Close()

	scheduler := core.NewSchedulerService(comps.Runner)
	if err := scheduler.Schedule(ctx, cfg.Jobs.Schedule, core.RunJobs); err != nil {
		slog.Error("invalid job schedule", "error", err)
		os.Exit(1)
	}
	if err := scheduler.Schedule(ctx, cfg.Sources.Schedule, core.RunSources); err != nil {
		slog.Error("invalid source schedule", "error", err)
		os.Exit(1)
	}
	scheduler.Start(ctx, cfg.Jobs.RunOnStart)

	srv := api.NewServer(comps.Store, comps.Runner, comps.Extractor)
	if srv.ServeStatic("web") {
		slog.Info("serving static job board", "dir", "web")
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "port", cfg.Server.Port, "storage", cfg.Storage.Backend)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	// Runs started over the API ignore request cancellation; let the active
	// one finish before the store is closed.
	drainCtx, cancel := context.WithTimeout(context.Background(), runDrainTimeout)
	defer cancel()
	if err := comps.Runner.Shutdown(drainCtx); err != nil {
		slog.Warn("active run still going at shutdown", "kind", comps.Runner.Active(), "error", err)
	}
}
