package query

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/duckmesh/mesquery/internal/observability"
	"github.com/duckmesh/mesquery/internal/rowstore"
)

const identifier = `(?:"[^"]+"|[\p{L}\p{N}_]+)`

const qualifiedIdentifier = `(` + identifier + `(?:\s*\.\s*` + identifier + `)*)`

var identifierPattern = regexp.MustCompile(identifier)

// Tried in order; the first match wins. Statement verbs are anchored so a
// nested FROM does not shadow the written table.
var tablePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+` + qualifiedIdentifier),
	regexp.MustCompile(`(?is)^\s*UPDATE\s+` + qualifiedIdentifier),
	regexp.MustCompile(`(?is)^\s*DELETE\s+FROM\s+` + qualifiedIdentifier),
	regexp.MustCompile(`(?is)\bFROM\s+` + qualifiedIdentifier),
}

// ExtractTableName returns the unqualified, unquoted table a statement
// addresses.
func ExtractTableName(sql string) (string, error) {
	for _, pattern := range tablePatterns {
		m := pattern.FindStringSubmatch(sql)
		if m == nil {
			continue
		}
		parts := identifierPattern.FindAllString(m[1], -1)
		if len(parts) == 0 {
			continue
		}
		if name := strings.Trim(parts[len(parts)-1], `"`); name != "" {
			return name, nil
		}
	}
	return "", ErrTableNotDetermined
}

// Executor runs SQL against a resource-oriented row store by reading the
// whole target table.
type Executor struct {
	Store  rowstore.Store
	Logger *slog.Logger
	Clock  func() time.Time
}

// Execute never fails: every error is reported inside the result. start is
// the instant timing began.
func (e *Executor) Execute(ctx context.Context, sql string, qi *QueryIntent, start time.Time) QueryResult {
	clock := e.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := observability.LoggerOrDefault(e.Logger)

	rows, err := e.selectRows(ctx, sql)
	now := clock()
	elapsedMs := float64(now.Sub(start).Microseconds()) / 1000
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	if err != nil {
		logger.WarnContext(ctx, "query execution failed", "sql", sql, "error", err)
		observability.ObserveQueryExecution(false, 0, elapsedMs)
		return QueryResult{
			Success:           false,
			Data:              []rowstore.Row{},
			Columns:           []string{},
			SQL:               sql,
			VisualizationType: VisualizationTable,
			Actions:           []string{},
			ErrorMessage:      "查询执行失败: " + err.Error(),
			QueryTimeMs:       elapsedMs,
			GeneratedAt:       now.UTC(),
		}
	}

	observability.ObserveQueryExecution(true, len(rows), elapsedMs)
	result := QueryResult{
		Success:           true,
		Data:              rows,
		Columns:           rowstore.ColumnsOf(rows),
		SQL:               sql,
		RowsCount:         len(rows),
		Summary:           SummaryFor(qi, len(rows)),
		VisualizationType: VisualizationTable,
		Actions:           []string{},
		QueryTimeMs:       elapsedMs,
		GeneratedAt:       now.UTC(),
	}
	// An empty result keeps the table view and offers no follow-up actions.
	if len(rows) > 0 {
		result.VisualizationType = VisualizationFor(qi)
		result.Actions = ActionsFor(qi)
	}
	return result
}

func (e *Executor) selectRows(ctx context.Context, sql string) ([]rowstore.Row, error) {
	table, err := ExtractTableName(sql)
	if err != nil {
		return nil, err
	}
	if e.Store == nil {
		return nil, rowstore.ErrUnavailable
	}
	rows, err := e.Store.SelectAll(ctx, table)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []rowstore.Row{}
	}
	return rows, nil
}
