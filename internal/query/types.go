package query

import (
	"errors"
	"time"

	"github.com/duckmesh/mesquery/internal/rowstore"
)

var (
	ErrEmptyQuery         = errors.New("natural language query is empty")
	ErrEmptySQL           = errors.New("sql is empty")
	ErrInvalidMode        = errors.New("execution mode must be explain or execute")
	ErrTableNotDetermined = errors.New("cannot determine table from SQL")
)

type QueryType string

const (
	DirectTableQuery QueryType = "direct_table_query"
	MetricQuery      QueryType = "metric_query"
	AggregateQuery   QueryType = "aggregate_query"
	ComparisonQuery  QueryType = "comparison_query"
	TrendQuery       QueryType = "trend_query"
	UnknownQuery     QueryType = "unknown"
)

type VisualizationType string

const (
	VisualizationTable VisualizationType = "table"
	VisualizationBar   VisualizationType = "bar"
	VisualizationLine  VisualizationType = "line"
	VisualizationPie   VisualizationType = "pie"
	VisualizationGauge VisualizationType = "gauge"
)

type ExecutionMode string

const (
	ModeExplain ExecutionMode = "explain"
	ModeExecute ExecutionMode = "execute"
)

// ParseExecutionMode treats an empty mode as explain.
func ParseExecutionMode(value string) (ExecutionMode, error) {
	switch ExecutionMode(value) {
	case "", ModeExplain:
		return ModeExplain, nil
	case ModeExecute:
		return ModeExecute, nil
	default:
		return "", ErrInvalidMode
	}
}

// QueryIntent is the classified meaning of one utterance. It is built once and
// not mutated afterwards.
type QueryIntent struct {
	QueryType              QueryType      `json:"query_type"`
	NaturalLanguage        string         `json:"natural_language"`
	Metric                 string         `json:"metric,omitempty"`
	TimeRange              string         `json:"time_range,omitempty"`
	Equipment              []string       `json:"equipment"`
	Shift                  []string       `json:"shift"`
	TableName              string         `json:"table_name,omitempty"`
	Comparison             bool           `json:"comparison"`
	Confidence             float64        `json:"confidence"`
	ClarificationNeeded    bool           `json:"clarification_needed"`
	ClarificationQuestions []string       `json:"clarification_questions,omitempty"`
	RawIntentData          map[string]any `json:"raw_intent_data,omitempty"`
}

type SchemaContext struct {
	Tables          []string   `json:"tables"`
	TotalColumns    int        `json:"total_columns"`
	MetadataUpdated *time.Time `json:"metadata_updated"`
	RelevantContext []string   `json:"relevant_context"`
}

// QueryPlan always carries SQL unless RequiresClarification is set.
type QueryPlan struct {
	QueryIntent           QueryIntent    `json:"query_intent"`
	GeneratedSQL          string         `json:"generated_sql,omitempty"`
	SQLConfidence         float64        `json:"sql_confidence"`
	RequiresClarification bool           `json:"requires_clarification"`
	ClarificationMessage  string         `json:"clarification_message,omitempty"`
	SuggestedSQLVariants  []string       `json:"suggested_sql_variants,omitempty"`
	SchemaContext         *SchemaContext `json:"schema_context,omitempty"`
	Explanation           string         `json:"explanation,omitempty"`
}

// QueryResult reports one execution. RowsCount always equals len(Data), and
// ErrorMessage is set only when Success is false.
type QueryResult struct {
	Success           bool              `json:"success"`
	Data              []rowstore.Row    `json:"data"`
	Columns           []string          `json:"columns"`
	SQL               string            `json:"sql"`
	RowsCount         int               `json:"rows_count"`
	Summary           string            `json:"summary,omitempty"`
	VisualizationType VisualizationType `json:"visualization_type"`
	Actions           []string          `json:"actions"`
	ErrorMessage      string            `json:"error_message,omitempty"`
	QueryTimeMs       float64           `json:"query_time_ms"`
	GeneratedAt       time.Time         `json:"generated_at"`
}
