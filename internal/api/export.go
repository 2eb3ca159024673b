package api

import (
	"errors"
	"net/http"

	"github.com/duckmesh/mesquery/internal/export"
	"github.com/duckmesh/mesquery/internal/storage"
)

type exportResponse struct {
	Success bool `json:"success"`
	export.Summary
}

func handleExportQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Exporter == nil {
		writeError(r.Context(), w, http.StatusNotFound, "EXPORT_DISABLED", "result export is not enabled", false, nil)
		return
	}
	if !requireQueryService(deps, w, r) {
		return
	}
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid export request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Query.ExecuteApproved(r.Context(), req.SQL, req.QueryIntent)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	if !result.Success {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", result.ErrorMessage, false, map[string]any{"sql": result.SQL})
		return
	}

	summary, err := deps.Exporter.Export(r.Context(), result)
	switch {
	case errors.Is(err, export.ErrEmptyResult):
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "EXPORT_EMPTY", "query returned no rows to export", false, nil)
		return
	case err != nil:
		writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_FAILED", "failed to export query result", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, exportResponse{Success: true, Summary: summary})
}

func handleGetExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Exporter == nil {
		writeError(r.Context(), w, http.StatusNotFound, "EXPORT_DISABLED", "result export is not enabled", false, nil)
		return
	}
	key := r.PathValue("key")
	if _, err := storage.ParseExportKey(key); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_EXPORT_KEY", "export key must have the form yyyy/mm/dd/<id>.parquet", false, map[string]any{"key": key})
		return
	}

	info, err := deps.Exporter.Stat(r.Context(), key)
	switch {
	case errors.Is(err, storage.ErrInvalidKey):
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_EXPORT_KEY", "export key must have the form yyyy/mm/dd/<id>.parquet", false, map[string]any{"key": key})
		return
	case errors.Is(err, storage.ErrObjectNotFound):
		writeError(r.Context(), w, http.StatusNotFound, "EXPORT_NOT_FOUND", "export was not found", false, map[string]any{"key": key})
		return
	case err != nil:
		writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_STORE_ERROR", "failed to read export", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "export": info})
}
