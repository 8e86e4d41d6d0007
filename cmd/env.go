package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shivortex/lead-scraper/internal/collect"
	"github.com/shivortex/lead-scraper/internal/db"
	"github.com/shivortex/lead-scraper/internal/fetcher"
	"github.com/shivortex/lead-scraper/internal/ingest"
	"github.com/shivortex/lead-scraper/internal/store"
	"github.com/shivortex/lead-scraper/pkg/google"
)

// openStore opens the configured backend and applies migrations. Callers
// must Close the returned store.
func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// buildRegistry wires every collector to the shared fetchers. The places
// collector is registered only when an API key is configured.
func buildRegistry() *collect.Registry {
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:         cfg.Fetch.UserAgent,
		Timeout:           time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:        cfg.Fetch.MaxRetries,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Burst:             cfg.Fetch.Burst,
	})
	ftpFetcher := fetcher.NewFTPFetcher(fetcher.FTPOptions{
		Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
	})

	reg := collect.NewRegistry()
	reg.Register(collect.NewHTMLCollector(httpFetcher))
	reg.Register(collect.NewOverpassCollector(httpFetcher, cfg.Overpass.BaseURL))
	reg.Register(collect.NewFileCollector(&fetcher.Opener{HTTP: httpFetcher, FTP: ftpFetcher}))

	if cfg.Places.Key != "" {
		client := google.NewClient(cfg.Places.Key,
			google.WithBaseURL(cfg.Places.BaseURL),
			google.WithDoer(httpFetcher),
		)
		reg.Register(collect.NewPlacesCollector(client, cfg.Places.MaxPages))
		zap.L().Info("google places collector enabled")
	} else {
		zap.L().Debug("LEADS_PLACES_KEY not set, places collector disabled")
	}

	return reg
}

// ingestRunner performs one ingestion run per call against a fixed store,
// registry and seeds file. The pipeline, and with it the collector breaker,
// is shared by every run.
type ingestRunner struct {
	store     store.Store
	registry  *collect.Registry
	seedsPath string
	lockPath  string
	pipeline  *ingest.Pipeline
}

// run loads the seeds, takes the run lock and executes the pipeline. A held
// lock skips the run without error.
func (r *ingestRunner) run(ctx context.Context) (*ingest.Report, error) {
	log := zap.L().With(zap.String("component", "ingest"))

	specs, err := ingest.LoadSeeds(r.seedsPath)
	if err != nil {
		return nil, err
	}
	jobs, err := ingest.Jobs(r.registry, specs)
	if err != nil {
		return nil, err
	}

	if r.lockPath != "" {
		lock := ingest.NewRunLock(r.lockPath)
		if err := lock.TryLock(); err != nil {
			if eris.Is(err, ingest.ErrRunInProgress) {
				log.Warn("ingest: skipping run, lock held", zap.String("lock", r.lockPath))
				return nil, nil
			}
			return nil, err
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				log.Warn("ingest: release lock", zap.Error(err))
			}
		}()
	}

	if r.pipeline == nil {
		r.pipeline = ingest.New(r.store, ingest.Options{
			CollectorTimeout: cfg.Ingest.CollectorTimeout(),
			BreakerThreshold: cfg.Ingest.BreakerThreshold,
			BreakerCooldown:  cfg.Ingest.BreakerCooldown(),
		})
	}
	report, err := r.pipeline.Run(ctx, jobs)
	if report != nil {
		report.Log(log)
	}
	return report, err
}
