package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveIntentRecognitionCountsByLabels(t *testing.T) {
	before := testutil.ToFloat64(intentRecognitionsTotal.WithLabelValues("query_production", "hybrid"))
	ObserveIntentRecognition("query_production", "hybrid")
	after := testutil.ToFloat64(intentRecognitionsTotal.WithLabelValues("query_production", "hybrid"))
	if after-before != 1 {
		t.Fatalf("recognitions delta = %v", after-before)
	}
}

func TestObserveMetadataRefreshSetsGaugesOnlyOnSuccess(t *testing.T) {
	ObserveMetadataRefresh(nil, 3, 17)
	if got := testutil.ToFloat64(metadataTables); got != 3 {
		t.Fatalf("metadataTables = %v", got)
	}
	if got := testutil.ToFloat64(metadataColumns); got != 17 {
		t.Fatalf("metadataColumns = %v", got)
	}

	ObserveMetadataRefresh(errors.New("store down"), 0, 0)
	if got := testutil.ToFloat64(metadataTables); got != 3 {
		t.Fatalf("metadataTables after failure = %v", got)
	}
}

func TestObserveQueryExecutionCountsRows(t *testing.T) {
	before := testutil.ToFloat64(rowsReturnedTotal)
	ObserveQueryExecution(true, 12, 4.5)
	ObserveQueryExecution(false, 0, -1)
	if got := testutil.ToFloat64(rowsReturnedTotal) - before; got != 12 {
		t.Fatalf("rows delta = %v", got)
	}
	ObserveLLMRequest("deepseek", "success", 120*time.Millisecond)
	if got := testutil.ToFloat64(llmRequestsTotal.WithLabelValues("deepseek", "success")); got < 1 {
		t.Fatalf("llm requests = %v", got)
	}
}
