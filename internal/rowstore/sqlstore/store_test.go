package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/duckmesh/mesquery/internal/rowstore"
)

func TestSelectAllReturnsOrderedRows(t *testing.T) {
	db, mock := newSQLMock(t)
	store := New(db, DriverPostgres, 50)

	produced := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "production_orders" LIMIT 50`)).
		WillReturnRows(sqlmock.NewRows([]string{"order_no", "qty", "produced_at"}).
			AddRow([]byte("PO-001"), int64(120), produced).
			AddRow("PO-002", int64(80), nil))

	rows, err := store.SelectAll(context.Background(), "production_orders")
	if err != nil {
		t.Fatalf("SelectAll() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("SelectAll() rows = %d, want 2", len(rows))
	}
	if got := rows[0].Columns; len(got) != 3 || got[0] != "order_no" || got[2] != "produced_at" {
		t.Fatalf("Columns = %v", got)
	}
	if value, _ := rows[0].Get("order_no"); value != "PO-001" {
		t.Fatalf("order_no = %#v, want string", value)
	}
	if value, _ := rows[0].Get("produced_at"); value != "2026-01-02T08:00:00Z" {
		t.Fatalf("produced_at = %#v", value)
	}
	if value, ok := rows[1].Get("produced_at"); !ok || value != nil {
		t.Fatalf("produced_at = %#v, %v", value, ok)
	}
	assertSQLMock(t, mock)
}

func TestSelectAllQuotesQualifiedNames(t *testing.T) {
	db, mock := newSQLMock(t)
	store := New(db, DriverPostgres, 0)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "mes"."odd""name" LIMIT 1000`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rows, err := store.SelectAll(context.Background(), `mes.odd"name`)
	if err != nil {
		t.Fatalf("SelectAll() error = %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("SelectAll() rows = %d, want 0", len(rows))
	}
	assertSQLMock(t, mock)
}

func TestSelectAllRejectsEmptyName(t *testing.T) {
	db, _ := newSQLMock(t)
	store := New(db, DriverPostgres, 0)

	for _, name := range []string{"", "  ", "mes.", `""`} {
		if _, err := store.SelectAll(context.Background(), name); err == nil {
			t.Fatalf("SelectAll(%q) expected error", name)
		}
	}
}

func TestSelectAllErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		err    error
		want   error
	}{
		{name: "postgres undefined table", driver: DriverPostgres, err: &pgconn.PgError{Code: "42P01", Message: `relation "missing" does not exist`}, want: rowstore.ErrTableNotFound},
		{name: "duckdb catalog error", driver: DriverDuckDB, err: errors.New("Catalog Error: Table with name missing does not exist!"), want: rowstore.ErrTableNotFound},
		{name: "connection failure", driver: DriverPostgres, err: sql.ErrConnDone, want: rowstore.ErrUnavailable},
		{name: "other postgres error", driver: DriverPostgres, err: &pgconn.PgError{Code: "42501", Message: "permission denied"}, want: rowstore.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newSQLMock(t)
			store := New(db, tt.driver, 10)
			mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "missing" LIMIT 10`)).WillReturnError(tt.err)

			_, err := store.SelectAll(context.Background(), "missing")
			if !errors.Is(err, tt.want) {
				t.Fatalf("SelectAll() error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Fatalf("SelectAll() error = %v, want wrapped cause", err)
			}
			assertSQLMock(t, mock)
		})
	}
}

func TestSelectAllCanceledIsNotUnavailable(t *testing.T) {
	db, mock := newSQLMock(t)
	store := New(db, DriverPostgres, 10)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" LIMIT 10`)).WillReturnError(context.Canceled)

	_, err := store.SelectAll(context.Background(), "orders")
	if errors.Is(err, rowstore.ErrUnavailable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("SelectAll() error = %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "sqlite"}); err == nil {
		t.Fatal("Open() expected error for unknown driver")
	}
	if _, err := Open(context.Background(), Config{Driver: DriverPostgres}); err == nil {
		t.Fatal("Open() expected error for missing dsn")
	}
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
