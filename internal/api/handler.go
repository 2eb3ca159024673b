package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/duckmesh/mesquery/internal/annotation"
	"github.com/duckmesh/mesquery/internal/auth"
	"github.com/duckmesh/mesquery/internal/config"
	"github.com/duckmesh/mesquery/internal/export"
	"github.com/duckmesh/mesquery/internal/intent"
	"github.com/duckmesh/mesquery/internal/observability"
	"github.com/duckmesh/mesquery/internal/query"
	"github.com/duckmesh/mesquery/internal/storage"
)

type ReadinessCheck func(ctx context.Context) error

type QueryService interface {
	RecognizeIntent(ctx context.Context, text string) (intent.Result, error)
	ProcessQuery(ctx context.Context, text string, mode query.ExecutionMode) (query.QueryPlan, *query.QueryResult, error)
	ExecuteApproved(ctx context.Context, sql string, qi *query.QueryIntent) (query.QueryResult, error)
}

type SchemaCatalog interface {
	MetadataSummary() annotation.Summary
	MetadataUpdatedAt() time.Time
	RefreshMetadata(ctx context.Context) error
}

type ResultExporter interface {
	Export(ctx context.Context, result query.QueryResult) (export.Summary, error)
	Stat(ctx context.Context, key string) (storage.ObjectInfo, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Query             QueryService
	Schema            SchemaCatalog

	// Exporter is nil when result export is disabled.
	Exporter ResultExporter
}

type route struct {
	pattern string
	role    string
	handler func(Dependencies, http.ResponseWriter, *http.Request)
}

var protectedRoutes = []route{
	{pattern: "POST /v1/intent/recognize", role: auth.RoleQueryReader, handler: handleRecognizeIntent},
	{pattern: "POST /v1/query/process", role: auth.RoleQueryReader, handler: handleProcessQuery},
	{pattern: "POST /v1/query/explain", role: auth.RoleQueryReader, handler: handleExplainQuery},
	{pattern: "POST /v1/query/validate", role: auth.RoleQueryReader, handler: handleValidateSQL},
	{pattern: "GET /v1/query/recommendations", role: auth.RoleQueryReader, handler: handleRecommendations},
	{pattern: "POST /v1/query/execute", role: auth.RoleQueryExecutor, handler: handleExecuteQuery},
	{pattern: "POST /v1/query/export", role: auth.RoleQueryExecutor, handler: handleExportQuery},
	{pattern: "GET /v1/exports/{key...}", role: auth.RoleQueryExecutor, handler: handleGetExport},
	{pattern: "GET /v1/schema/metadata", role: auth.RoleQueryReader, handler: handleSchemaMetadata},
	{pattern: "POST /v1/schema/refresh", role: auth.RoleSchemaAdmin, handler: handleSchemaRefresh},
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	for _, rt := range protectedRoutes {
		handle := rt.handler
		protected.Handle(rt.pattern, auth.RequireRole(rt.role, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle(deps, w, r)
		})))
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			observability.LoggerOrDefault(deps.Logger).Error("auth required but auth middleware missing")
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for _, rt := range protectedRoutes {
		mux.Handle(rt.pattern, protectedHandler)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	middlewares = append(middlewares, observability.RecoverMiddleware(observability.LoggerOrDefault(deps.Logger)))
	return chain(mux, middlewares...)
}

// CheckPing adapts a dependency ping into a named readiness check.
func CheckPing(name string, ping func(ctx context.Context) error) ReadinessCheck {
	return func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

// CombineReadinessChecks runs checks concurrently and reports the first
// failure.
func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		group, groupCtx := errgroup.WithContext(ctx)
		for _, check := range filtered {
			group.Go(func() error {
				return check(groupCtx)
			})
		}
		return group.Wait()
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"success":    false,
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
