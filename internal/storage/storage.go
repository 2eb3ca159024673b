package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidKey     = errors.New("invalid export key")
)

const ParquetContentType = "application/vnd.apache.parquet"

// ObjectInfo describes a stored export. Key is the export key, without the
// store's prefix.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	Rows         int       `json:"rows"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified,omitzero"`
}

// Export is one encoded query result ready for upload.
type Export struct {
	Key  string
	Body []byte
	Rows int
}

// ObjectStore holds exported query results. Keys must have the shape
// BuildExportKey produces.
type ObjectStore interface {
	PutExport(ctx context.Context, export Export) (ObjectInfo, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	HealthCheck(ctx context.Context) error
}
