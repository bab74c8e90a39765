package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lysyi3m/moltdir/app/cfg"
	"github.com/lysyi3m/moltdir/app/crawler"
	"github.com/lysyi3m/moltdir/app/database"
	"github.com/lysyi3m/moltdir/app/dataset"
	"github.com/lysyi3m/moltdir/app/extract"
	"github.com/lysyi3m/moltdir/app/pipeline"
	"github.com/lysyi3m/moltdir/app/policy"
	"github.com/lysyi3m/moltdir/app/tasks"
)

func main() {
	config, err := cfg.Load(os.Args[1:])
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(2)
	}
	if config == nil {
		return
	}

	setupLogging(config.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config); err != nil {
		slog.Error("Command failed", "command", config.Command, "error", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// App holds the components shared by every command.
type App struct {
	cfg        *cfg.Cfg
	policy     *policy.Policy
	store      *dataset.Store
	db         *database.DB
	sites      database.SiteRepositoryInterface
	runs       database.RunRepositoryInterface
	httpClient *http.Client
	fetcher    *crawler.Fetcher
	extractor  *extract.Extractor
	pool       *tasks.Pool
	metrics    *pipeline.Metrics
}

func newApp(config *cfg.Cfg) (*App, error) {
	var (
		p   *policy.Policy
		err error
	)
	if config.PolicyFile != "" {
		p, err = policy.Load(config.PolicyFile)
	} else {
		p, err = policy.Default()
	}
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:        config,
		policy:     p,
		store:      dataset.NewStore(config.PortalsFile, config.ExclusionsFile, config.PublicFile),
		httpClient: &http.Client{},
		extractor:  extract.NewExtractor(),
		pool:       tasks.NewPool(config.Workers, config.TaskTimeout),
		metrics:    pipeline.NewMetrics(),
	}
	a.fetcher = crawler.NewFetcher(a.httpClient, crawler.FetcherOptions{
		UserAgent:    config.UserAgent,
		Timeout:      config.FetchTimeout,
		RequestsPerS: config.RequestsPerSecond,
		Burst:        config.Workers,
	})

	if config.HistoryDB != "" {
		if err := os.MkdirAll(filepath.Dir(config.HistoryDB), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
		db, err := database.NewConnection(config.HistoryDB)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.sites = database.NewSiteRepository(db)
		a.runs = database.NewRunRepository(db)
	}

	slog.Debug("Application initialized",
		"version", config.Version,
		"portals", config.PortalsFile,
		"exclusions", config.ExclusionsFile,
		"history", config.HistoryDB,
		"workers", config.Workers)

	return a, nil
}

func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("Failed to close crawl history", "error", err)
		}
	}
}

func (a *App) newPipeline(opts cfg.RunCfg) *pipeline.Pipeline {
	resolver := crawler.NewResolver(nil, a.cfg.FetchTimeout)
	ct := crawler.NewCTClient(a.fetcher, a.cfg.CTEndpoint)

	return pipeline.New(pipeline.Deps{
		Policy:     a.policy,
		Store:      a.store,
		Discoverer: crawler.NewDiscoverer(a.policy, a.fetcher, resolver, ct, a.pool),
		Fetcher:    a.fetcher,
		Extractor:  a.extractor,
		Pool:       a.pool,
		Sites:      a.sites,
		Runs:       a.runs,
		Metrics:    a.metrics,
	}, pipeline.Options{
		Sources: crawler.Sources{
			Leads: opts.Leads,
			Seeds: opts.Seeds,
			CT:    opts.CT,
			DNS:   opts.DNS,
		},
		LockWait:      a.cfg.LockWait,
		RecheckWindow: a.cfg.RecheckWindow,
		DryRun:        opts.DryRun,
	})
}

func run(ctx context.Context, config *cfg.Cfg) error {
	a, err := newApp(config)
	if err != nil {
		return err
	}
	defer a.Close()

	switch config.Command {
	case cfg.CommandRun:
		return a.runDiscovery(ctx)
	case cfg.CommandSync:
		return a.runSync(ctx)
	case cfg.CommandDedup:
		return a.runDedup(ctx)
	case cfg.CommandCleanup:
		return a.runCleanup(ctx)
	case cfg.CommandAudit:
		return a.runAudit()
	case cfg.CommandVerify:
		return a.runVerify(ctx)
	case cfg.CommandStats:
		return a.runStats(ctx)
	case cfg.CommandServe:
		return a.runServe(ctx)
	case cfg.CommandWatch:
		return a.runWatch(ctx)
	}
	return fmt.Errorf("unknown command %q", config.Command)
}
