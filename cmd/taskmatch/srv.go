package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"taskmatch/internal/blobstore"
	"taskmatch/internal/classifier"
	"taskmatch/internal/config"
	"taskmatch/internal/metrics"
	"taskmatch/internal/pgstore"
	"taskmatch/internal/server"
	"taskmatch/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the taskmatch API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			snapshots, closeSnapshots, err := openSnapshotSource(ctx, cfg, st, logger)
			if err != nil {
				return err
			}
			defer closeSnapshots()

			m := metrics.New()
			pipeline, err := newPipeline(cfg, snapshots, m, slog.Default())
			if err != nil {
				return err
			}

			srv := server.New(addr, st, pipeline, logger, server.Options{
				Version:        version,
				DBPath:         cfg.DBPath,
				StoreDriver:    cfg.Store.Driver,
				ClassifierMode: cfg.Classifier.Mode,
				APITokenHash:   cfg.APITokenHash,
				WebhookSecret:  cfg.Webhook.Secret,
				DedupeSize:     cfg.Webhook.DedupeSize,
				DedupeTTL:      cfg.Webhook.DedupeTTL.Duration,
			})
			srv.ConfigureSnapshotSource(snapshots)
			srv.ConfigureMetrics(m)

			if cfg.Webhook.Archive {
				root := filepath.Join(filepath.Dir(cfg.DBPath), ".taskmatch", "deliveries")
				archive, err := blobstore.NewLocalArchive(root)
				if err != nil {
					return err
				}
				logger.Info("archiving webhook deliveries", "root", root)
				srv.ConfigureArchive(archive)
			}

			return srv.Run(ctx)
		},
	}
}

// openSnapshotSource returns the store graph reads go to. The postgres driver
// reads the hosted schema while fixtures and deliveries stay in SQLite.
func openSnapshotSource(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (classifier.SnapshotFetcher, func(), error) {
	switch cfg.Store.Driver {
	case "", config.StoreDriverSQLite:
		return st, func() {}, nil
	case config.StoreDriverPostgres:
		logger.Info("reading task graphs from postgres")
		pg, err := pgstore.Open(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
