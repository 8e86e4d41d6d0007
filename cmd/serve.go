package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shivortex/lead-scraper/internal/api"
	"github.com/shivortex/lead-scraper/internal/ingest"
	"github.com/shivortex/lead-scraper/internal/query"
	"github.com/shivortex/lead-scraper/internal/store"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort        int
	serveIngestEvery time.Duration
	serveSeeds       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the lead query API",
	Long: "Starts the HTTP query API. With --ingest-every an ingestion run from the seeds file " +
		"also runs on that interval alongside the server.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		if serveIngestEvery > 0 {
			if err := cfg.Validate("ingest"); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		svc, closeCache, err := newQueryService(ctx, st)
		if err != nil {
			return err
		}
		defer closeCache()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.NewRouter(svc, api.Options{AllowedOrigins: cfg.Server.CORSOrigins}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if serveIngestEvery > 0 {
			runner := &ingestRunner{
				store:     st,
				registry:  buildRegistry(),
				seedsPath: seedsPath(serveSeeds),
				lockPath:  cfg.Ingest.LockFile,
			}
			g.Go(func() error {
				zap.L().Info("scheduled ingestion enabled", zap.Duration("every", serveIngestEvery))
				return ingest.Every(gctx, serveIngestEvery, func(ctx context.Context) error {
					_, err := runner.run(ctx)
					return err
				})
			})
		}

		return g.Wait()
	},
}

// newQueryService builds the query service, with a Redis cache when one is
// configured. The returned func releases the cache connection.
func newQueryService(ctx context.Context, st store.Store) (*query.Service, func(), error) {
	if cfg.Cache.RedisURL == "" {
		return query.NewService(st), func() {}, nil
	}

	cache, err := query.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL())
	if err != nil {
		return nil, nil, err
	}
	zap.L().Info("query cache enabled", zap.Duration("ttl", cfg.Cache.TTL()))

	return query.NewService(st, query.WithCache(cache)), func() {
		if err := cache.Close(); err != nil {
			zap.L().Warn("close query cache", zap.Error(err))
		}
	}, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().DurationVar(&serveIngestEvery, "ingest-every", 0, "also run ingestion on this interval; 0 disables")
	serveCmd.Flags().StringVar(&serveSeeds, "seeds", "", "seeds file for --ingest-every (default from config ingest.seeds_file)")
	rootCmd.AddCommand(serveCmd)
}
