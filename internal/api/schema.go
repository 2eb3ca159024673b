package api

import (
	"net/http"
	"time"

	"github.com/duckmesh/mesquery/internal/annotation"
)

type schemaResponse struct {
	Success   bool               `json:"success"`
	Summary   annotation.Summary `json:"summary"`
	UpdatedAt *time.Time         `json:"updated_at"`
}

func handleSchemaMetadata(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireSchema(deps, w, r) {
		return
	}
	writeJSON(w, http.StatusOK, schemaSnapshot(deps.Schema))
}

func handleSchemaRefresh(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireSchema(deps, w, r) {
		return
	}
	if err := deps.Schema.RefreshMetadata(r.Context()); err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "SCHEMA_REFRESH_FAILED", "failed to refresh schema metadata", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schemaSnapshot(deps.Schema))
}

func schemaSnapshot(schema SchemaCatalog) schemaResponse {
	response := schemaResponse{Success: true, Summary: schema.MetadataSummary()}
	if updated := schema.MetadataUpdatedAt(); !updated.IsZero() {
		response.UpdatedAt = &updated
	}
	return response
}

func requireSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema metadata is not configured", false, nil)
		return false
	}
	return true
}
