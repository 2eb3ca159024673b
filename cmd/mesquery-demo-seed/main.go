package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	annotationpostgres "github.com/duckmesh/mesquery/internal/annotation/postgres"
	"github.com/duckmesh/mesquery/internal/config"
	"github.com/duckmesh/mesquery/internal/demo/seed"
	"github.com/duckmesh/mesquery/internal/observability"
	"github.com/duckmesh/mesquery/internal/rowstore/sqlstore"
)

func main() {
	cfg, err := config.LoadFromEnv("mesquery-demo-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	seedCfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		logger.Error("failed to load demo seed config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rowsDB, err := sqlstore.OpenDB(ctx, sqlstore.Config{Driver: cfg.RowStore.Driver, DSN: cfg.RowStore.DSN})
	if err != nil {
		logger.Error("failed to open row store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = rowsDB.Close() }()

	seeder := &seed.Seeder{DB: rowsDB, Logger: logger}
	written, err := seeder.Seed(ctx, seed.NewGenerator(seedCfg.Seed, seedCfg.Equipment), seedCfg.RowsPerTable)
	if err != nil {
		logger.Error("demo seed failed", slog.Any("error", err))
		os.Exit(1)
	}

	if seedCfg.PublishAnnotations {
		if cfg.Annotation.Source != config.AnnotationSourcePostgres {
			logger.Warn("skipping annotation publish; annotation source is not postgres",
				slog.String("source", string(cfg.Annotation.Source)))
		} else {
			annotationDB, err := annotationpostgres.Open(ctx, annotationpostgres.DBConfig{DSN: cfg.Annotation.DSN, MaxOpenConns: 1})
			if err != nil {
				logger.Error("failed to open annotation store", slog.Any("error", err))
				os.Exit(1)
			}
			defer func() { _ = annotationDB.Close() }()
			if err := seed.PublishAnnotations(ctx, annotationDB, seedCfg.Reviewer); err != nil {
				logger.Error("publish demo annotations failed", slog.Any("error", err))
				os.Exit(1)
			}
			logger.Info("demo annotations published", slog.Int("tables", len(seed.Tables)))
		}
	}

	logger.Info("demo seed complete", slog.Any("rows", written))
}
