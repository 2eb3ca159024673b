package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/duckmesh/mesquery/internal/export"
	"github.com/duckmesh/mesquery/internal/query"
	"github.com/duckmesh/mesquery/internal/rowstore"
	"github.com/duckmesh/mesquery/internal/storage"
)

func TestExportEndpointWritesResult(t *testing.T) {
	columns := []string{"order_no"}
	service := &fakeQueryService{result: query.QueryResult{
		Success:   true,
		Data:      []rowstore.Row{rowstore.NewRow(columns, []any{"PO-1"})},
		Columns:   columns,
		RowsCount: 1,
	}}
	exporter := &fakeExporter{summary: export.Summary{Key: "2026/03/04/e1.parquet", Bucket: "mesquery-exports", Size: 512, Rows: 1, ExportedAt: fixedNow}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Query: service, Exporter: exporter})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query/export", strings.NewReader(`{"sql":"SELECT * FROM production_orders"}`)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["success"] != true || body["key"] != "2026/03/04/e1.parquet" || body["rows"] != float64(1) || body["bucket"] != "mesquery-exports" {
		t.Fatalf("body = %v", body)
	}
	if len(exporter.exported) != 1 || exporter.exported[0].SQL != "SELECT * FROM production_orders" {
		t.Fatalf("exported = %+v", exporter.exported)
	}
}

func TestExportEndpointFailures(t *testing.T) {
	columns := []string{"a"}
	okResult := query.QueryResult{Success: true, Data: []rowstore.Row{rowstore.NewRow(columns, []any{1})}, Columns: columns, RowsCount: 1}
	tests := []struct {
		name     string
		result   query.QueryResult
		err      error
		want     int
		code     string
		exported int
	}{
		{name: "execution failed", result: query.QueryResult{Success: false, ErrorMessage: "查询执行失败: table not found"}, want: http.StatusBadRequest, code: "QUERY_EXECUTION_FAILED"},
		{name: "empty result", result: query.QueryResult{Success: true}, err: export.ErrEmptyResult, want: http.StatusUnprocessableEntity, code: "EXPORT_EMPTY", exported: 1},
		{name: "upload failed", result: okResult, err: errors.New("upload export: bucket gone"), want: http.StatusBadGateway, code: "EXPORT_FAILED", exported: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := &fakeExporter{exportErr: tt.err}
			h := NewHandler(loadConfig(t, nil), Dependencies{Query: &fakeQueryService{result: tt.result}, Exporter: exporter})
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query/export", strings.NewReader(`{"sql":"SELECT * FROM t"}`)))
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d", rr.Code, tt.want)
			}
			if got := decodeBody(t, rr)["error_code"]; got != tt.code {
				t.Fatalf("error_code = %v, want %s", got, tt.code)
			}
			if len(exporter.exported) != tt.exported {
				t.Fatalf("exports = %d, want %d", len(exporter.exported), tt.exported)
			}
		})
	}
}

func TestGetExportEndpoint(t *testing.T) {
	exporter := &fakeExporter{objects: map[string]storage.ObjectInfo{
		"2026/03/04/e1.parquet": {Key: "2026/03/04/e1.parquet", Size: 512, ETag: "abc"},
	}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Exporter: exporter})

	tests := []struct {
		path string
		want int
	}{
		{path: "/v1/exports/2026/03/04/e1.parquet", want: http.StatusOK},
		{path: "/v1/exports/2026/03/04/missing.parquet", want: http.StatusNotFound},
		{path: "/v1/exports/2026/03/04/e1.csv", want: http.StatusBadRequest},
		{path: "/v1/exports/latest.parquet", want: http.StatusBadRequest},
		{path: "/v1/exports/2026/13/04/e1.parquet", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rr.Code != tt.want {
			t.Fatalf("GET %s status = %d, want %d", tt.path, rr.Code, tt.want)
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/exports/2026/03/04/e1.parquet", nil))
	info, _ := decodeBody(t, rr)["export"].(map[string]any)
	if info["size"] != float64(512) || info["etag"] != "abc" {
		t.Fatalf("export = %v", info)
	}
}
