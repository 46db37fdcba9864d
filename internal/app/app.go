// Package app initializes and holds the long-lived services behind every
// command: config, logger, store, renderer, strategies, and the batch
// orchestrator.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rentpulse/rentpulse/internal/batch"
	"github.com/rentpulse/rentpulse/internal/config"
	"github.com/rentpulse/rentpulse/internal/fetcher/headless"
	"github.com/rentpulse/rentpulse/internal/fetcher/httpclient"
	"github.com/rentpulse/rentpulse/internal/genai"
	"github.com/rentpulse/rentpulse/internal/logging"
	"github.com/rentpulse/rentpulse/internal/metrics"
	"github.com/rentpulse/rentpulse/internal/roster"
	"github.com/rentpulse/rentpulse/internal/scrape"
	"github.com/rentpulse/rentpulse/internal/store/memory"
	"github.com/rentpulse/rentpulse/internal/store/postgres"
	"github.com/rentpulse/rentpulse/internal/strategy"
)

// Options tweak service construction per command.
type Options struct {
	ConfigPath string
	// DryRun swaps the Postgres store for an in-memory one; nothing is
	// persisted and the roster file is still read.
	DryRun bool
}

// App is the service container shared by the CLI commands.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Store        scrape.Store
	Roster       scrape.Roster
	Renderer     scrape.Renderer
	Fetcher      scrape.PageFetcher
	Registry     *strategy.Registry
	Orchestrator *batch.Orchestrator
	Metrics      *metrics.Metrics

	pg       *postgres.Store
	renderer *headless.Renderer
}

// New builds the whole service graph, failing fast on anything critical.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	if opts.DryRun || cfg.DB.DSN == "" {
		if !opts.DryRun {
			logger.Warn("db.dsn not set, using in-memory store; nothing will persist")
		}
		a.Store = memory.New(memory.WithZeroThreshold(cfg.Scrape.ZeroThreshold))
	} else {
		pg, err := postgres.Connect(ctx, cfg.DB.DSN, postgres.WithZeroThreshold(cfg.Scrape.ZeroThreshold))
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pg = pg
		a.Store = pg
	}

	a.Roster = roster.NewFileRoster(cfg.Roster.Path, cfg.Roster.OutDir, logger)

	if opts.DryRun {
		// Dry runs must work without a Chrome install; browser-routed
		// buildings will surface the renderer error as a failed scrape.
		a.Renderer = headless.NewNoop()
	} else {
		a.renderer, err = headless.New(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Scrape.UserAgent,
			NavigationTimeout: cfg.Headless.NavigationTimeout,
			SettleDelay:       cfg.Headless.SettleDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("init renderer: %w", err)
		}
		a.Renderer = a.renderer
	}

	a.Fetcher = httpclient.New(httpclient.Config{
		UserAgent: cfg.Scrape.UserAgent,
		HostRPS:   cfg.Scrape.HostRPS,
	})

	var model genai.Client
	if cfg.GenAI.APIKey != "" {
		model, err = genai.New(genai.Config{
			APIKey:    cfg.GenAI.APIKey,
			Model:     cfg.GenAI.Model,
			MaxTokens: int64(cfg.GenAI.MaxTokens),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init model client: %w", err)
		}
	} else {
		logger.Warn("genai.api_key not set; llm-routed buildings will fail")
	}

	a.Registry = strategy.NewRegistry(strategy.Deps{
		Fetcher:  a.Fetcher,
		Renderer: a.Renderer,
		Model:    model,
		Logger:   logger,
	})

	a.Orchestrator = batch.New(a.Store, a.Roster, a.Registry, batch.Config{
		MaxWorkers:   cfg.Scrape.MaxWorkers,
		BrowserSlots: cfg.Scrape.BrowserSlots,
		HTTPSlots:    cfg.Scrape.HTTPSlots,
		BrowserDelay: cfg.Scrape.BrowserDelay,
		HTTPDelay:    cfg.Scrape.HTTPDelay,
		RunRetention: cfg.Scrape.RunRetention,
	}, logger, batch.WithRecorder(a.Metrics))

	return a, nil
}

// Close shuts services down and flushes logs.
func (a *App) Close() {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.pg != nil {
		a.pg.Close()
	}
	_ = a.Logger.Sync() // syncing stderr can return EINVAL, best effort
}
