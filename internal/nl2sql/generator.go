package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/duckmesh/mesquery/internal/annotation"
	"github.com/duckmesh/mesquery/internal/llm"
	"github.com/duckmesh/mesquery/internal/observability"
)

var ErrEmptyInput = errors.New("natural language input is empty")

const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

type Options struct {
	Logger *slog.Logger

	// RefreshTimeout bounds the fetch made at construction.
	RefreshTimeout time.Duration
	Now            func() time.Time
}

// Generator turns natural language into SQL using the hosted model, enriched
// with approved schema annotations. The metadata cache may be stale between
// refreshes.
type Generator struct {
	store    annotation.Store
	provider llm.Provider
	logger   *slog.Logger
	now      func() time.Time
	group    singleflight.Group

	mu        sync.RWMutex
	metadata  annotation.Metadata
	updatedAt time.Time
}

// NewGenerator performs one metadata fetch before returning. A failed fetch
// leaves the cache empty and is only logged.
func NewGenerator(ctx context.Context, store annotation.Store, provider llm.Provider, opts Options) (*Generator, error) {
	if store == nil {
		return nil, fmt.Errorf("annotation store is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	g := &Generator{
		store:    store,
		provider: provider,
		logger:   observability.LoggerOrDefault(opts.Logger),
		now:      opts.Now,
	}
	if g.now == nil {
		g.now = time.Now
	}
	refreshCtx := ctx
	if opts.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		refreshCtx, cancel = context.WithTimeout(ctx, opts.RefreshTimeout)
		defer cancel()
	}
	if err := g.RefreshMetadata(refreshCtx); err != nil {
		g.logger.Warn("initial schema metadata load failed", "error", err)
	}
	return g, nil
}

// RefreshMetadata replaces the cache with a fresh fetch. Concurrent callers
// share a single fetch. On failure the previous cache is kept.
func (g *Generator) RefreshMetadata(ctx context.Context) error {
	_, err, _ := g.group.Do("metadata", func() (any, error) {
		md, err := g.store.FetchApprovedMetadata(ctx)
		if err != nil {
			observability.ObserveMetadataRefresh(err, 0, 0)
			return nil, fmt.Errorf("fetch approved metadata: %w", err)
		}
		summary := md.Summary()
		g.mu.Lock()
		g.metadata = md.Clone()
		g.updatedAt = g.now().UTC()
		g.mu.Unlock()
		observability.ObserveMetadataRefresh(nil, summary.Tables, summary.Columns)
		g.logger.Info("schema metadata loaded", "tables", summary.Tables, "columns", summary.Columns)
		return nil, nil
	})
	return err
}

// Convert always yields SQL for non-empty input: the model's answer when it
// is usable, the fallback template otherwise.
func (g *Generator) Convert(ctx context.Context, naturalLanguage string) (string, error) {
	naturalLanguage = strings.TrimSpace(naturalLanguage)
	if naturalLanguage == "" {
		return "", ErrEmptyInput
	}
	md := g.Metadata()

	completion, err := g.provider.Complete(ctx, BuildPrompt(md, naturalLanguage))
	if err == nil {
		if sql, ok := usableSQL(completion); ok {
			observability.ObserveSQLGeneration(SourceLLM)
			return sql, nil
		}
		err = &llm.ProviderError{Provider: g.provider.Name(), Kind: llm.FailureMalformed, Err: fmt.Errorf("completion is not a SQL statement")}
	}
	g.logger.Warn("sql generation fell back to template", "error", err)
	observability.ObserveSQLGeneration(SourceFallback)
	return Fallback(naturalLanguage, md), nil
}

// Metadata returns a copy of the cached annotations.
func (g *Generator) Metadata() annotation.Metadata {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.metadata.Clone()
}

func (g *Generator) MetadataSummary() annotation.Summary {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.metadata.Summary()
}

// MetadataUpdatedAt is zero until the first successful refresh.
func (g *Generator) MetadataUpdatedAt() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.updatedAt
}

func (g *Generator) TableNameFromLocalizedName(name string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.metadata.TableByLocalizedName(name)
}

func (g *Generator) ColumnNameFromLocalizedName(table, name string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.metadata.ColumnByLocalizedName(table, name)
}

var sqlVerbs = []string{"SELECT", "WITH", "INSERT", "UPDATE", "DELETE"}

func usableSQL(completion string) (string, bool) {
	sql := strings.TrimSpace(llm.StripCodeFence(completion))
	if sql == "" {
		return "", false
	}
	upper := strings.ToUpper(sql)
	for _, verb := range sqlVerbs {
		if strings.HasPrefix(upper, verb) {
			return sql, true
		}
	}
	return "", false
}
