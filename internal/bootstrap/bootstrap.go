// Package bootstrap wires configuration, storage, fetchers and the run
// services shared by the server and the command-line updater.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/baxromumarov/uni-recruit/internal/api"
	"github.com/baxromumarov/uni-recruit/internal/config"
	"github.com/baxromumarov/uni-recruit/internal/core"
	"github.com/baxromumarov/uni-recruit/internal/discovery"
	"github.com/baxromumarov/uni-recruit/internal/extract"
	"github.com/baxromumarov/uni-recruit/internal/httpx"
	"github.com/baxromumarov/uni-recruit/internal/store"
)

// Backend is satisfied by both store.Store and store.FileStore.
type Backend interface {
	core.Repository
	api.Reader
	Close() error
}

type Components struct {
	Config    config.Config
	Store     Backend
	Extractor *extract.Extractor
	Updater   *core.JobUpdater
	Refresher *core.URLRefresher
	Runner    *core.Runner
}

func (c *Components) Close() error {
	return c.Store.Close()
}

// SetupStorage opens the configured backend. Postgres schemas are applied
// on open.
func SetupStorage(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		slog.Info("using file storage", "universities", cfg.UniversitiesPath(), "jobs", cfg.JobsPath())
		return store.NewFileStore(cfg.UniversitiesPath(), cfg.JobsPath()), nil
	case config.BackendPostgres:
		db, err := store.NewStore(cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Setup builds every component. progress may be nil.
func Setup(ctx context.Context, cfg config.Config, progress core.ProgressFunc) (*Components, error) {
	backend, err := SetupStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Wire(cfg, backend, progress), nil
}

// Wire assembles the services on top of an open backend.
func Wire(cfg config.Config, backend Backend, progress core.ProgressFunc) *Components {
	rules := cfg.Rules()
	httpOpts := cfg.HTTPOptions()

	extractor := extract.New(rules, extract.WithArticleFilter(cfg.Jobs.RequireArticleLike))

	updater := core.NewJobUpdater(backend, httpx.NewCollyFetcher(httpOpts), extractor,
		core.WithUpdaterDelay(cfg.Jobs.Delay),
		core.WithUpdaterProgress(progress),
	)

	searchClient := httpx.NewPoliteClient(httpOpts)
	resolver := discovery.NewResolver(cfg.SearchEngine(), searchClient)
	refresher := core.NewURLRefresher(backend, searchClient, resolver,
		core.WithRefresherDelay(cfg.Sources.Delay),
		core.WithQuerySuffix(cfg.Sources.QuerySuffix),
		core.WithDescription(cfg.Sources.Description),
		core.WithRefresherProgress(progress),
	)

	return &Components{
		Config:    cfg,
		Store:     backend,
		Extractor: extractor,
		Updater:   updater,
		Refresher: refresher,
		Runner:    core.NewRunner(updater, refresher),
	}
}
