package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/duckmesh/mesquery/internal/auth"
	"github.com/duckmesh/mesquery/internal/intent"
	"github.com/duckmesh/mesquery/internal/query"
)

type recognizeRequest struct {
	Query string `json:"query"`
}

type recognizeResponse struct {
	intent.FrontendIntent
	Backend backendIntent `json:"_backend"`
}

type backendIntent struct {
	RecognizedIntent intent.Name     `json:"recognizedIntent"`
	MethodsUsed      []intent.Method `json:"methodsUsed"`
	Reasoning        string          `json:"reasoning"`
}

type processRequest struct {
	NaturalLanguage string `json:"natural_language"`
	ExecutionMode   string `json:"execution_mode"`
}

type processResponse struct {
	Success     bool               `json:"success"`
	QueryPlan   query.QueryPlan    `json:"query_plan"`
	QueryResult *query.QueryResult `json:"query_result,omitempty"`
}

type executeRequest struct {
	SQL         string             `json:"sql"`
	QueryIntent *query.QueryIntent `json:"query_intent"`
}

type executeResponse struct {
	Success     bool              `json:"success"`
	QueryResult query.QueryResult `json:"query_result"`
}

type validateRequest struct {
	SQL string `json:"sql"`
}

type validateResponse struct {
	Success  bool     `json:"success"`
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type Recommendation struct {
	Title           string `json:"title"`
	NaturalLanguage string `json:"natural_language"`
	Category        string `json:"category"`
	Icon            string `json:"icon"`
}

var recommendations = []Recommendation{
	{Title: "查看今天的OEE", NaturalLanguage: "查询今天各设备的OEE数据", Category: "metric", Icon: "chart"},
	{Title: "对比设备效率", NaturalLanguage: "对比本周所有设备的效率差异", Category: "comparison", Icon: "compare"},
	{Title: "查询停机时间", NaturalLanguage: "查询本月的设备停机时间统计", Category: "metric", Icon: "alert"},
	{Title: "产品质量分析", NaturalLanguage: "分析最近30天的产品良率趋势", Category: "trend", Icon: "trend"},
}

func handleRecognizeIntent(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireQueryService(deps, w, r) {
		return
	}
	var req recognizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid intent request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Query.RecognizeIntent(r.Context(), req.Query)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	if !result.Success {
		writeError(r.Context(), w, http.StatusInternalServerError, "INTENT_RECOGNITION_FAILED", result.Error, true, nil)
		return
	}

	methods := result.MethodsUsed
	if methods == nil {
		methods = []intent.Method{}
	}
	writeJSON(w, http.StatusOK, recognizeResponse{
		FrontendIntent: intent.ToFrontendFormat(result),
		Backend: backendIntent{
			RecognizedIntent: result.Intent,
			MethodsUsed:      methods,
			Reasoning:        result.Reasoning,
		},
	})
}

func handleProcessQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireQueryService(deps, w, r) {
		return
	}
	var req processRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	mode, err := query.ParseExecutionMode(req.ExecutionMode)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	if mode == query.ModeExecute && !hasRole(r, auth.RoleQueryExecutor) {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", "missing role "+auth.RoleQueryExecutor, false, nil)
		return
	}

	plan, result, err := deps.Query.ProcessQuery(r.Context(), req.NaturalLanguage, mode)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, processResponse{Success: true, QueryPlan: plan, QueryResult: result})
}

func handleExplainQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireQueryService(deps, w, r) {
		return
	}
	var req struct {
		NaturalLanguage string `json:"natural_language"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid explain request body", false, map[string]any{"details": err.Error()})
		return
	}

	plan, _, err := deps.Query.ProcessQuery(r.Context(), req.NaturalLanguage, query.ModeExplain)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, processResponse{Success: true, QueryPlan: plan})
}

func handleExecuteQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !requireQueryService(deps, w, r) {
		return
	}
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid execute request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Query.ExecuteApproved(r.Context(), req.SQL, req.QueryIntent)
	if err != nil {
		writeQueryError(w, r, err)
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, executeResponse{Success: result.Success, QueryResult: result})
}

func handleValidateSQL(_ Dependencies, w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid validate request body", false, map[string]any{"details": err.Error()})
		return
	}
	sql := strings.TrimSpace(req.SQL)
	if sql == "" {
		writeQueryError(w, r, query.ErrEmptySQL)
		return
	}
	writeJSON(w, http.StatusOK, validateSQL(sql))
}

// validateSQL accepts read-only statements and warns when no row limit is set.
func validateSQL(sql string) validateResponse {
	response := validateResponse{Success: true, IsValid: true, Errors: []string{}, Warnings: []string{}}
	upper := strings.ToUpper(sql)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		response.IsValid = false
		response.Errors = append(response.Errors, "仅支持SELECT查询")
	}
	if !strings.Contains(upper, "LIMIT") {
		response.Warnings = append(response.Warnings, "建议添加LIMIT子句以限制返回行数")
	}
	return response
}

func handleRecommendations(_ Dependencies, w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "recommendations": recommendations})
}

func requireQueryService(deps Dependencies, w http.ResponseWriter, r *http.Request) bool {
	if deps.Query == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query service is not configured", false, nil)
		return false
	}
	return true
}

func writeQueryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, query.ErrEmptyQuery):
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_REQUIRED", "natural language query is required", false, nil)
	case errors.Is(err, query.ErrEmptySQL):
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
	case errors.Is(err, query.ErrInvalidMode):
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_EXECUTION_MODE", err.Error(), false, nil)
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "QUERY_FAILED", "query processing failed", true, map[string]any{"details": err.Error()})
	}
}

// hasRole reports whether the caller may act as role. Requests without an
// identity are allowed; they only occur when auth is disabled.
func hasRole(r *http.Request, role string) bool {
	identity, ok := auth.IdentityFromContext(r.Context())
	return !ok || identity.HasRole(role)
}
