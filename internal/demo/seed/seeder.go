package seed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/duckmesh/mesquery/internal/observability"
)

// Seeder recreates the demo tables in a row store. Existing demo tables are
// dropped first.
type Seeder struct {
	DB     *sql.DB
	Logger *slog.Logger
}

// Seed writes rowsPerTable rows into every demo table and returns the number
// of rows written per table.
func (s *Seeder) Seed(ctx context.Context, g *Generator, rowsPerTable int) (map[string]int, error) {
	if s.DB == nil {
		return nil, fmt.Errorf("row store handle is required")
	}
	logger := observability.LoggerOrDefault(s.Logger)
	written := make(map[string]int, len(Tables))
	for _, table := range Tables {
		rows, err := g.Rows(table, rowsPerTable)
		if err != nil {
			return written, err
		}
		if err := s.loadTable(ctx, table, rows); err != nil {
			return written, err
		}
		written[table.Name] = len(rows)
		logger.Info("demo table seeded", slog.String("table", table.Name), slog.Int("rows", len(rows)))
	}
	return written, nil
}

func (s *Seeder) loadTable(ctx context.Context, table Table, rows [][]any) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table.Name); err != nil {
		return fmt.Errorf("drop table %s: %w", table.Name, err)
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(table)); err != nil {
		return fmt.Errorf("create table %s: %w", table.Name, err)
	}
	insert := insertSQL(table)
	for i, row := range rows {
		if _, err := tx.ExecContext(ctx, insert, row...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", table.Name, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit table %s: %w", table.Name, err)
	}
	return nil
}

func createTableSQL(table Table) string {
	defs := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		defs[i] = column.Name + " " + column.Type
	}
	return "CREATE TABLE " + table.Name + " (" + strings.Join(defs, ", ") + ")"
}

func insertSQL(table Table) string {
	placeholders := make([]string, len(table.Columns))
	for i := range table.Columns {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	return "INSERT INTO " + table.Name + " (" + strings.Join(table.ColumnNames(), ", ") +
		") VALUES (" + strings.Join(placeholders, ", ") + ")"
}

const upsertTableAnnotation = `
INSERT INTO schema_table_annotations
	(table_name, table_name_cn, description_cn, description_en, business_meaning, use_case, status, reviewed_by, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 'approved', $7, NOW())
ON CONFLICT (table_name) DO UPDATE SET
	table_name_cn = EXCLUDED.table_name_cn,
	description_cn = EXCLUDED.description_cn,
	description_en = EXCLUDED.description_en,
	business_meaning = EXCLUDED.business_meaning,
	use_case = EXCLUDED.use_case,
	status = 'approved',
	reviewed_by = EXCLUDED.reviewed_by,
	updated_at = NOW()`

const upsertColumnAnnotation = `
INSERT INTO schema_column_annotations
	(table_name, column_name, column_name_cn, data_type, description_cn, description_en,
	 example_value, business_meaning, value_range, status, reviewed_by, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'approved', $10, NOW())
ON CONFLICT (table_name, column_name) DO UPDATE SET
	column_name_cn = EXCLUDED.column_name_cn,
	data_type = EXCLUDED.data_type,
	description_cn = EXCLUDED.description_cn,
	description_en = EXCLUDED.description_en,
	example_value = EXCLUDED.example_value,
	business_meaning = EXCLUDED.business_meaning,
	value_range = EXCLUDED.value_range,
	status = 'approved',
	reviewed_by = EXCLUDED.reviewed_by,
	updated_at = NOW()`

// PublishAnnotations upserts approved annotations for every demo table into
// the annotation database. The schema must already be migrated.
func PublishAnnotations(ctx context.Context, db *sql.DB, reviewer string) error {
	if db == nil {
		return fmt.Errorf("annotation handle is required")
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range Tables {
		if _, err := tx.ExecContext(ctx, upsertTableAnnotation,
			table.Name, table.NameCN, table.DescriptionCN, table.DescriptionEN,
			table.BusinessMeaning, table.UseCase, reviewer,
		); err != nil {
			return fmt.Errorf("upsert table annotation %s: %w", table.Name, err)
		}
		for _, column := range table.Columns {
			if _, err := tx.ExecContext(ctx, upsertColumnAnnotation,
				table.Name, column.Name, column.NameCN, column.Type, column.DescriptionCN,
				column.DescriptionEN, column.Example, column.BusinessMeaning, column.Range, reviewer,
			); err != nil {
				return fmt.Errorf("upsert column annotation %s.%s: %w", table.Name, column.Name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit annotations: %w", err)
	}
	return nil
}
