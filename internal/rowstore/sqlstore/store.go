package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/duckmesh/mesquery/internal/rowstore"
)

const (
	DriverPostgres = "pgx"
	DriverDuckDB   = "duckdb"

	DefaultMaxRows = 1000
)

// undefined_table
const pgUndefinedTable = "42P01"

type Config struct {
	Driver          string
	DSN             string
	MaxRows         int
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type Store struct {
	db      *sql.DB
	driver  string
	maxRows int
}

func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(db, cfg.Driver, cfg.MaxRows), nil
}

// OpenDB opens and pings a pooled handle for the configured driver.
func OpenDB(ctx context.Context, cfg Config) (*sql.DB, error) {
	switch cfg.Driver {
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("row store dsn is required")
		}
	case DriverDuckDB:
	default:
		return nil, fmt.Errorf("unsupported row store driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open row store: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping row store: %w: %w", rowstore.ErrUnavailable, err)
	}
	return db, nil
}

// New wraps an open handle. A non-positive maxRows uses DefaultMaxRows.
func New(db *sql.DB, driver string, maxRows int) *Store {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Store{db: db, driver: driver, maxRows: maxRows}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping row store: %w", err)
	}
	return nil
}

func (s *Store) SelectAll(ctx context.Context, table string) ([]rowstore.Row, error) {
	ident, err := quoteTable(table)
	if err != nil {
		return nil, err
	}
	statement := fmt.Sprintf("SELECT * FROM %s LIMIT %d", ident, s.maxRows)

	rows, err := s.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, s.classify(table, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns of %q: %w", table, err)
	}

	result := make([]rowstore.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan row of %q: %w", table, err)
		}
		result = append(result, rowstore.NewRow(columns, normalizeValues(values)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows of %q: %w", table, err)
	}
	return result, nil
}

func (s *Store) classify(table string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("select from %q: %w: %w", table, rowstore.ErrTableNotFound, err)
	}
	if s.driver == DriverDuckDB && isDuckDBMissingTable(err) {
		return fmt.Errorf("select from %q: %w: %w", table, rowstore.ErrTableNotFound, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("select from %q: %w", table, err)
	}
	return fmt.Errorf("select from %q: %w: %w", table, rowstore.ErrUnavailable, err)
}

// DuckDB reports unknown tables as catalog errors without a stable code.
func isDuckDBMissingTable(err error) bool {
	message := err.Error()
	return strings.Contains(message, "Catalog Error") && strings.Contains(message, "does not exist")
}

// quoteTable quotes each dot-separated part of a possibly schema-qualified
// name.
func quoteTable(table string) (string, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return "", fmt.Errorf("table name is required")
	}
	parts := strings.Split(table, ".")
	quoted := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.Trim(part, `"`)
		if part == "" {
			return "", fmt.Errorf("invalid table name %q", table)
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(part, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, "."), nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case time.Time:
			normalized[i] = typed.UTC().Format(time.RFC3339Nano)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
