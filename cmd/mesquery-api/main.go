package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/duckmesh/mesquery/internal/annotation"
	"github.com/duckmesh/mesquery/internal/annotation/httpstore"
	annotationpostgres "github.com/duckmesh/mesquery/internal/annotation/postgres"
	"github.com/duckmesh/mesquery/internal/api"
	"github.com/duckmesh/mesquery/internal/auth"
	"github.com/duckmesh/mesquery/internal/config"
	"github.com/duckmesh/mesquery/internal/export"
	"github.com/duckmesh/mesquery/internal/intent"
	"github.com/duckmesh/mesquery/internal/llm"
	"github.com/duckmesh/mesquery/internal/nl2sql"
	"github.com/duckmesh/mesquery/internal/observability"
	"github.com/duckmesh/mesquery/internal/query"
	"github.com/duckmesh/mesquery/internal/rowstore/sqlstore"
	s3store "github.com/duckmesh/mesquery/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("mesquery-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api server stopped", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var checks []api.ReadinessCheck

	annotations, closeAnnotations, check, err := openAnnotationStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAnnotations()
	checks = append(checks, check)

	rows, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver:          cfg.RowStore.Driver,
		DSN:             cfg.RowStore.DSN,
		MaxRows:         cfg.RowStore.MaxRows,
		MaxOpenConns:    cfg.RowStore.MaxOpenConns,
		MaxIdleConns:    cfg.RowStore.MaxIdleConns,
		ConnMaxIdleTime: cfg.RowStore.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.RowStore.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open row store: %w", err)
	}
	defer func() { _ = rows.Close() }()
	checks = append(checks, api.CheckPing("row store", rows.HealthCheck))

	provider, err := newProvider(cfg, logger)
	if err != nil {
		return err
	}

	vocab, err := loadVocabulary(cfg.Intent.VocabularyPath)
	if err != nil {
		return err
	}
	recognizer := intent.NewRecognizer(vocab, provider, intent.Options{
		ShortCircuitConfidence: cfg.Intent.ShortCircuitConfidence,
		ClarifyThreshold:       cfg.Intent.ClarifyThreshold,
		Logger:                 logger,
	})
	generator, err := nl2sql.NewGenerator(ctx, annotations, provider, nl2sql.Options{
		Logger:         logger,
		RefreshTimeout: cfg.Metadata.RefreshTimeout,
	})
	if err != nil {
		return fmt.Errorf("build sql generator: %w", err)
	}

	service := &query.Service{
		Recognizer: recognizer,
		Generator:  generator,
		Explainer:  provider,
		Executor:   &query.Executor{Store: rows, Logger: logger},
		Config: query.Config{
			ClarifyThreshold: cfg.Query.ClarifyThreshold,
			SQLConfidence:    cfg.Query.SQLConfidence,
		},
		Logger: logger,
	}

	deps := api.Dependencies{
		Logger:            logger,
		DependencyTimeout: 2 * time.Second,
		Query:             service,
		Schema:            generator,
	}

	if cfg.Export.Enabled {
		objects, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.Export.Endpoint,
			Region:           cfg.Export.Region,
			Bucket:           cfg.Export.Bucket,
			AccessKeyID:      cfg.Export.AccessKeyID,
			SecretAccessKey:  cfg.Export.SecretAccessKey,
			UseSSL:           cfg.Export.UseSSL,
			Prefix:           cfg.Export.Prefix,
			AutoCreateBucket: cfg.Export.AutoCreateBucket,
		})
		if err != nil {
			return fmt.Errorf("initialize export store: %w", err)
		}
		deps.Exporter = &export.Service{Store: objects, Bucket: objects.Bucket(), Logger: logger}
		checks = append(checks, api.CheckPing("export store", objects.HealthCheck))
	}
	deps.Readiness = api.CombineReadinessChecks(checks...)

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			return fmt.Errorf("parse static auth keys: %w", err)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	if cfg.Metadata.RefreshSchedule != "" {
		scheduler, err := nl2sql.NewRefreshScheduler(generator, cfg.Metadata.RefreshSchedule, cfg.Metadata.RefreshTimeout, logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("llm_provider", provider.Name()),
			slog.Bool("export_enabled", deps.Exporter != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func openAnnotationStore(ctx context.Context, cfg config.Config) (annotation.Store, func(), api.ReadinessCheck, error) {
	noop := func() {}
	switch cfg.Annotation.Source {
	case config.AnnotationSourcePostgres:
		db, err := annotationpostgres.Open(ctx, annotationpostgres.DBConfig{
			DSN:             cfg.Annotation.DSN,
			MaxOpenConns:    cfg.Annotation.MaxOpenConns,
			MaxIdleConns:    cfg.Annotation.MaxIdleConns,
			ConnMaxIdleTime: cfg.Annotation.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Annotation.ConnMaxLifetime,
		})
		if err != nil {
			return nil, noop, nil, fmt.Errorf("open annotation store: %w", err)
		}
		store := annotationpostgres.NewStore(db)
		return store, func() { _ = db.Close() }, api.CheckPing("annotation store", store.HealthCheck), nil
	case config.AnnotationSourceHTTP:
		store, err := httpstore.New(httpstore.Config{URL: cfg.Annotation.URL, Timeout: cfg.Annotation.Timeout})
		if err != nil {
			return nil, noop, nil, fmt.Errorf("build annotation client: %w", err)
		}
		return store, noop, nil, nil
	default:
		return annotation.StaticStore{}, noop, nil, nil
	}
}

func newProvider(cfg config.Config, logger *slog.Logger) (llm.Provider, error) {
	if cfg.LLM.APIKey == "" {
		logger.Warn("llm api key is not configured; rule and fallback paths only",
			slog.String("provider", cfg.LLM.Provider))
		return llm.Disabled{Variant: llm.Variant(cfg.LLM.Provider)}, nil
	}
	provider, err := llm.New(llm.Config{
		Variant:     llm.Variant(cfg.LLM.Provider),
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		RateLimit:   cfg.LLM.RateLimit,
		RateBurst:   cfg.LLM.RateBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("build llm provider: %w", err)
	}
	return provider, nil
}

func loadVocabulary(path string) (*intent.Vocabulary, error) {
	if path == "" {
		return intent.DefaultVocabulary()
	}
	vocab, err := intent.LoadVocabulary(path)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	return vocab, nil
}
