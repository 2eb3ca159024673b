package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/duckmesh/mesquery/internal/annotation"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping annotation db: %w", err)
	}
	return nil
}

const approvedTablesQuery = `
SELECT table_name,
       COALESCE(table_name_cn, ''),
       COALESCE(description_cn, ''),
       COALESCE(description_en, ''),
       COALESCE(business_meaning, ''),
       COALESCE(use_case, '')
FROM schema_table_annotations
WHERE status = 'approved'
ORDER BY table_name`

const approvedColumnsQuery = `
SELECT table_name,
       column_name,
       COALESCE(column_name_cn, ''),
       COALESCE(data_type, ''),
       COALESCE(description_cn, ''),
       COALESCE(description_en, ''),
       COALESCE(example_value, ''),
       COALESCE(business_meaning, ''),
       COALESCE(value_range, '')
FROM schema_column_annotations
WHERE status = 'approved'
ORDER BY table_name, column_name`

func (s *Store) FetchApprovedMetadata(ctx context.Context) (annotation.Metadata, error) {
	builder := annotation.NewBuilder()

	tableRows, err := s.db.QueryContext(ctx, approvedTablesQuery)
	if err != nil {
		return annotation.Metadata{}, classify("query approved tables", err)
	}
	defer func() { _ = tableRows.Close() }()
	for tableRows.Next() {
		var table annotation.TableMeta
		if err := tableRows.Scan(
			&table.Name,
			&table.NameCN,
			&table.DescriptionCN,
			&table.DescriptionEN,
			&table.BusinessMeaning,
			&table.UseCase,
		); err != nil {
			return annotation.Metadata{}, fmt.Errorf("scan approved table: %w", err)
		}
		builder.AddTable(table)
	}
	if err := tableRows.Err(); err != nil {
		return annotation.Metadata{}, fmt.Errorf("iterate approved tables: %w", err)
	}

	columnRows, err := s.db.QueryContext(ctx, approvedColumnsQuery)
	if err != nil {
		return annotation.Metadata{}, classify("query approved columns", err)
	}
	defer func() { _ = columnRows.Close() }()
	for columnRows.Next() {
		var table string
		var column annotation.ColumnMeta
		if err := columnRows.Scan(
			&table,
			&column.Name,
			&column.NameCN,
			&column.DataType,
			&column.DescriptionCN,
			&column.DescriptionEN,
			&column.Example,
			&column.BusinessMeaning,
			&column.Range,
		); err != nil {
			return annotation.Metadata{}, fmt.Errorf("scan approved column: %w", err)
		}
		builder.AddColumn(table, column)
	}
	if err := columnRows.Err(); err != nil {
		return annotation.Metadata{}, fmt.Errorf("iterate approved columns: %w", err)
	}

	return builder.Metadata(), nil
}

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, annotation.ErrStoreUnavailable, err)
}
