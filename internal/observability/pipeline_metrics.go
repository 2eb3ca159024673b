package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	intentRecognitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesquery_intent_recognitions_total",
			Help: "Total number of intent recognitions by final intent and stage path.",
		},
		[]string{"intent", "path"},
	)
	llmRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesquery_llm_requests_total",
			Help: "Total number of LLM completion requests by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	llmRequestLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mesquery_llm_request_latency_ms",
			Help:    "LLM completion latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"provider"},
	)
	sqlGenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesquery_sql_generations_total",
			Help: "Total number of generated SQL statements by source (llm or fallback).",
		},
		[]string{"source"},
	)
	queryPlansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesquery_query_plans_total",
			Help: "Total number of query plans by outcome.",
		},
		[]string{"outcome"},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesquery_query_executions_total",
			Help: "Total number of query executions by status.",
		},
		[]string{"status"},
	)
	queryExecutionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mesquery_query_execution_latency_ms",
			Help:    "End-to-end query latency in milliseconds, as reported in query results.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)
	rowsReturnedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mesquery_rows_returned_total",
			Help: "Total number of rows returned to callers.",
		},
	)
	metadataRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesquery_schema_metadata_refreshes_total",
			Help: "Total number of schema metadata refreshes by status.",
		},
		[]string{"status"},
	)
	metadataTables = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mesquery_schema_metadata_tables",
			Help: "Number of approved tables in the schema metadata cache.",
		},
	)
	metadataColumns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mesquery_schema_metadata_columns",
			Help: "Number of approved columns in the schema metadata cache.",
		},
	)
	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mesquery_exports_total",
			Help: "Total number of result exports by status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		intentRecognitionsTotal,
		llmRequestsTotal,
		llmRequestLatencyMs,
		sqlGenerationsTotal,
		queryPlansTotal,
		queryExecutionsTotal,
		queryExecutionLatencyMs,
		rowsReturnedTotal,
		metadataRefreshesTotal,
		metadataTables,
		metadataColumns,
		exportsTotal,
	)
}

// ObserveIntentRecognition records a finished recognition. path is "rule" for
// short-circuited results and "hybrid" when the LLM stage ran.
func ObserveIntentRecognition(intent, path string) {
	intentRecognitionsTotal.WithLabelValues(intent, path).Inc()
}

func ObserveLLMRequest(provider, outcome string, elapsed time.Duration) {
	llmRequestsTotal.WithLabelValues(provider, outcome).Inc()
	llmRequestLatencyMs.WithLabelValues(provider).Observe(float64(elapsed.Milliseconds()))
}

func ObserveSQLGeneration(source string) {
	sqlGenerationsTotal.WithLabelValues(source).Inc()
}

func ObserveQueryPlan(outcome string) {
	queryPlansTotal.WithLabelValues(outcome).Inc()
}

func ObserveQueryExecution(success bool, rows int, elapsedMs float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	queryExecutionsTotal.WithLabelValues(status).Inc()
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	queryExecutionLatencyMs.Observe(elapsedMs)
	if rows > 0 {
		rowsReturnedTotal.Add(float64(rows))
	}
}

func ObserveMetadataRefresh(err error, tables, columns int) {
	if err != nil {
		metadataRefreshesTotal.WithLabelValues("failure").Inc()
		return
	}
	metadataRefreshesTotal.WithLabelValues("success").Inc()
	metadataTables.Set(float64(tables))
	metadataColumns.Set(float64(columns))
}

func ObserveExport(err error) {
	if err != nil {
		exportsTotal.WithLabelValues("failure").Inc()
		return
	}
	exportsTotal.WithLabelValues("success").Inc()
}
