package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/duckmesh/mesquery/internal/observability"
	"github.com/duckmesh/mesquery/internal/query"
	"github.com/duckmesh/mesquery/internal/storage"
)

var (
	ErrFailedResult = errors.New("query result is not successful")
	ErrEmptyResult  = errors.New("query result has no rows")
)

type Summary struct {
	Key        string    `json:"key"`
	Bucket     string    `json:"bucket,omitempty"`
	Size       int64     `json:"size"`
	Rows       int       `json:"rows"`
	ExportedAt time.Time `json:"exported_at"`
}

// Service writes successful query results to the object store as parquet.
type Service struct {
	Store  storage.ObjectStore
	Bucket string
	Logger *slog.Logger
	Clock  func() time.Time
	NewID  func() string
}

func (s *Service) Export(ctx context.Context, result query.QueryResult) (Summary, error) {
	summary, err := s.export(ctx, result)
	observability.ObserveExport(err)
	if err != nil {
		observability.LoggerOrDefault(s.Logger).WarnContext(ctx, "result export failed", "error", err)
		return Summary{}, err
	}
	return summary, nil
}

func (s *Service) export(ctx context.Context, result query.QueryResult) (Summary, error) {
	if s.Store == nil {
		return Summary{}, fmt.Errorf("export store is not configured")
	}
	if !result.Success {
		return Summary{}, ErrFailedResult
	}
	if len(result.Data) == 0 {
		return Summary{}, ErrEmptyResult
	}

	data, err := EncodeRows(result.Columns, result.Data)
	if err != nil {
		return Summary{}, fmt.Errorf("encode result: %w", err)
	}

	now := time.Now
	if s.Clock != nil {
		now = s.Clock
	}
	newID := uuid.NewString
	if s.NewID != nil {
		newID = s.NewID
	}
	exportedAt := now().UTC()
	key, err := storage.BuildExportKey(exportedAt, newID())
	if err != nil {
		return Summary{}, fmt.Errorf("build export key: %w", err)
	}

	info, err := s.Store.PutExport(ctx, storage.Export{Key: key, Body: data, Rows: len(result.Data)})
	if err != nil {
		return Summary{}, fmt.Errorf("upload export: %w", err)
	}
	return Summary{
		Key:        info.Key,
		Bucket:     s.Bucket,
		Size:       info.Size,
		Rows:       info.Rows,
		ExportedAt: exportedAt,
	}, nil
}

// Stat describes a previously written export by its key.
func (s *Service) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	if _, err := storage.ParseExportKey(key); err != nil {
		return storage.ObjectInfo{}, err
	}
	if s.Store == nil {
		return storage.ObjectInfo{}, fmt.Errorf("export store is not configured")
	}
	return s.Store.Stat(ctx, key)
}
