package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/duckmesh/mesquery/internal/annotation"
)

func TestSchemaMetadataEndpoint(t *testing.T) {
	schema := &fakeSchema{summary: annotation.Summary{
		Tables:             1,
		Columns:            2,
		TableNames:         []string{"oee_records"},
		ColumnCountByTable: map[string]int{"oee_records": 2},
	}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Schema: schema})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema/metadata", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	summary, _ := body["summary"].(map[string]any)
	if summary["tables"] != float64(1) || summary["columns"] != float64(2) {
		t.Fatalf("summary = %v", summary)
	}
	if body["updated_at"] != nil {
		t.Fatalf("updated_at = %v, want null before the first load", body["updated_at"])
	}
}

func TestSchemaRefreshEndpoint(t *testing.T) {
	schema := &fakeSchema{}
	h := NewHandler(loadConfig(t, nil), Dependencies{Schema: schema})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/schema/refresh", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decodeBody(t, rr)["updated_at"]; got != "2026-03-04T08:30:00Z" {
		t.Fatalf("updated_at = %v", got)
	}

	schema.refreshErr = errors.New("fetch approved metadata: annotation store unavailable")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/schema/refresh", nil))
	if rr.Code != http.StatusBadGateway || decodeBody(t, rr)["error_code"] != "SCHEMA_REFRESH_FAILED" {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if schema.refreshes != 2 {
		t.Fatalf("refreshes = %d", schema.refreshes)
	}
}
