package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/lysyi3m/moltdir/app/api"
	"github.com/lysyi3m/moltdir/app/cfg"
	"github.com/lysyi3m/moltdir/app/dataset"
	"github.com/lysyi3m/moltdir/app/portal"
	"github.com/lysyi3m/moltdir/app/tasks"
	"github.com/lysyi3m/moltdir/app/verifier"
)

const recentRunsShown = 5

func (a *App) runDiscovery(ctx context.Context) error {
	report, err := a.newPipeline(a.cfg.Run).Run(ctx)
	a.writeMetrics()
	if err != nil {
		return err
	}
	printRunReport(os.Stdout, report)
	return nil
}

func (a *App) runSync(ctx context.Context) error {
	report, err := a.newPipeline(a.cfg.Run).Sync(ctx)
	a.writeMetrics()
	if err != nil {
		return err
	}
	printRunReport(os.Stdout, report)
	return nil
}

func (a *App) runDedup(ctx context.Context) error {
	apply := a.cfg.Dedup.Apply
	deduper := dataset.NewDeduper(a.policy)

	return a.withDataset(ctx, apply, func(ds *dataset.Dataset) (bool, error) {
		plan := deduper.Plan(ds)
		printDedupPlan(os.Stdout, plan)
		if plan.Empty() {
			return false, nil
		}
		if !apply {
			fmt.Println("\nDry run: re-run with --apply to merge.")
			return false, nil
		}

		delta := deduper.Apply(ds, plan)
		printDelta(os.Stdout, delta)
		return !delta.Empty(), nil
	})
}

func (a *App) runCleanup(ctx context.Context) error {
	apply := a.cfg.Cleanup.Apply
	cleaner := dataset.NewCleaner(a.policy, a.cfg.Cleanup.Window, time.Now)

	return a.withDataset(ctx, apply, func(ds *dataset.Dataset) (bool, error) {
		plan := cleaner.Plan(ds)
		printCleanupPlan(os.Stdout, plan)
		if len(plan.Removals) == 0 {
			return false, nil
		}
		if !apply {
			fmt.Println("\nDry run: re-run with --apply to remove.")
			return false, nil
		}

		delta, err := cleaner.Apply(ds, plan)
		if err != nil {
			return false, err
		}
		printDelta(os.Stdout, delta)
		return !delta.Empty(), nil
	})
}

func (a *App) runAudit() error {
	ds, err := a.store.Load()
	if err != nil {
		return err
	}

	entries := dataset.Audit(ds)
	printAudit(os.Stdout, entries)

	if path := a.cfg.Audit.CSVFile; path != "" {
		var buf bytes.Buffer
		if err := dataset.WriteAuditCSV(&buf, entries); err != nil {
			return err
		}
		if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write audit csv: %w", err)
		}
		slog.Info("Audit exported", "path", path, "entries", len(entries))
	}
	return nil
}

func (a *App) runVerify(ctx context.Context) error {
	vc := a.cfg.Verify

	classifier, err := a.classifier()
	if err != nil {
		return err
	}
	v := verifier.New(classifier, a.fetcher, a.extractor, a.pool)
	slog.Info("Verifier ready", "classifier", classifier.Name(), "apply", vc.Apply)

	return a.withDataset(ctx, vc.Apply, func(ds *dataset.Dataset) (bool, error) {
		var targets []verifier.Target
		if vc.URL != "" {
			target, err := singleTarget(vc.URL)
			if err != nil {
				return false, err
			}
			targets = append(targets, target)
		} else {
			targets = verifier.Targets(ds)
			if vc.Limit > 0 && len(targets) > vc.Limit {
				targets = targets[:vc.Limit]
			}
		}
		if len(targets) == 0 {
			fmt.Println("Nothing to verify.")
			return false, nil
		}

		reports, err := v.Run(ctx, targets)
		if err != nil {
			return false, err
		}
		printVerifyReports(os.Stdout, reports)

		if !vc.Apply {
			return false, nil
		}
		delta := verifier.Apply(ds, reports, time.Now())
		printDelta(os.Stdout, delta)
		return !delta.Empty(), nil
	})
}

func (a *App) classifier() (verifier.Classifier, error) {
	vc := a.cfg.Verify
	criteria := a.policy.InclusionCriteria

	switch vc.Backend {
	case cfg.BackendOpenAI:
		c, err := verifier.NewChatClassifier(nil, verifier.ChatOptions{
			Endpoint: vc.Endpoint,
			APIKey:   vc.OpenAIKey,
			Model:    vc.Model,
			Criteria: criteria,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		c, err := verifier.NewAnthropicClassifier(nil, verifier.AnthropicOptions{
			APIKey:     vc.AnthropicKey,
			Model:      vc.Model,
			BaseURL:    vc.Endpoint,
			Criteria:   criteria,
			MaxRetries: 2,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func singleTarget(raw string) (verifier.Target, error) {
	domain, err := portal.CanonicalDomain(raw)
	if err != nil {
		return verifier.Target{}, err
	}
	target := verifier.Target{Domain: domain}
	if strings.Contains(raw, "://") {
		target.URL = raw
	}
	return target, nil
}

func (a *App) runStats(ctx context.Context) error {
	ds, err := a.store.Load()
	if err != nil {
		return err
	}
	printStats(os.Stdout, ds.Stats())

	if a.sites != nil {
		count, err := a.sites.CountSites(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("\nCrawl history: %d sites seen\n", count)
	}
	if a.runs != nil {
		runs, err := a.runs.RecentRuns(ctx, recentRunsShown)
		if err != nil {
			return err
		}
		printRuns(os.Stdout, runs)
	}
	return nil
}

func (a *App) runServe(ctx context.Context) error {
	if ds, err := a.store.Load(); err != nil {
		slog.Warn("Dataset not loaded at startup", "error", err)
	} else {
		a.metrics.ObserveDataset(ds)
	}

	handler := api.NewHandler(a.store, a.sites, a.runs)
	server := api.NewServer(handler, a.cfg.Serve.APIAccessKey, a.metrics.Registry)

	httpServer := &http.Server{
		Addr:         ":" + a.cfg.Serve.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", a.cfg.Serve.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down server gracefully")
	case err := <-serverErrChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}

func (a *App) runWatch(ctx context.Context) error {
	p := a.newPipeline(a.cfg.Watch.RunCfg)

	schedule, err := tasks.NewSchedule(a.cfg.Watch.Schedule, "discovery", func(ctx context.Context) error {
		report, err := p.Run(ctx)
		a.writeMetrics()
		if err != nil {
			return err
		}
		printRunReport(os.Stdout, report)
		return nil
	})
	if err != nil {
		return err
	}

	schedule.Start()
	<-ctx.Done()
	slog.Info("Stopping schedule")
	schedule.Stop()
	return nil
}

// withDataset loads the dataset and hands it to fn. When write is set the
// write lock is held throughout and the dataset is saved if fn reports a change.
func (a *App) withDataset(ctx context.Context, write bool, fn func(ds *dataset.Dataset) (bool, error)) error {
	if write {
		unlock, err := a.store.Lock(ctx, a.cfg.LockWait)
		if err != nil {
			return err
		}
		defer func() {
			if err := unlock(); err != nil {
				slog.Warn("Failed to release dataset lock", "error", err)
			}
		}()
	}

	ds, err := a.store.Load()
	if err != nil {
		return err
	}

	changed, err := fn(ds)
	if err != nil || !write || !changed {
		return err
	}

	saved, err := a.store.Save(ds, time.Now())
	if err != nil {
		return err
	}
	slog.Info("Dataset saved", "portals", saved.Portals, "exclusions", saved.Exclusions)

	a.metrics.ObserveDataset(ds)
	a.writeMetrics()
	return nil
}

func (a *App) writeMetrics() {
	if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		slog.Warn("Failed to write metrics", "error", err)
	}
}
