package intent

import (
	"fmt"
	"strconv"
)

// External intent type buckets.
const (
	TypeQuery            = "query"
	TypeReport           = "report"
	TypeAnalysis         = "analysis"
	TypeComparison       = "comparison"
	TypeDirectTableQuery = "direct_table_query"
)

var frontendTypes = map[Name]string{
	DirectQuery:     TypeDirectTableQuery,
	QueryProduction: TypeQuery,
	QueryQuality:    TypeQuery,
	QueryEquipment:  TypeQuery,
	GenerateReport:  TypeReport,
	CompareAnalysis: TypeAnalysis,
}

type FrontendIntent struct {
	Success        bool             `json:"success"`
	Intent         Name             `json:"intent"`
	Type           string           `json:"type"`
	Entities       FrontendEntities `json:"entities"`
	Confidence     float64          `json:"confidence"`
	Clarifications []string         `json:"clarifications"`
}

type FrontendEntities struct {
	Metric     string   `json:"metric"`
	TimeRange  string   `json:"timeRange"`
	Equipment  []string `json:"equipment"`
	Shift      []string `json:"shift"`
	Comparison bool     `json:"comparison"`

	// Set only for direct table queries.
	TableName *string `json:"tableName,omitempty"`
	Limit     *int    `json:"limit,omitempty"`
}

// ToFrontendFormat projects a recognition result onto the client-facing shape.
func ToFrontendFormat(result Result) FrontendIntent {
	entities := result.Entities
	comparison := Truthy(entities["comparison"])

	kind, ok := frontendTypes[result.Intent]
	if !ok {
		kind = TypeQuery
	}
	if comparison {
		kind = TypeComparison
	}

	equipment := StringList(entities["equipment"])
	if len(equipment) == 0 {
		equipment = StringList(entities["equipmentId"])
	}
	out := FrontendEntities{
		Metric:     StringValue(entities["metric"]),
		TimeRange:  StringValue(entities["timeRange"]),
		Equipment:  equipment,
		Shift:      StringList(entities["shift"]),
		Comparison: comparison,
	}
	if out.Metric == "" {
		out.Metric = "general"
	}
	if result.Intent == DirectQuery {
		table := TableName(entities)
		out.TableName = &table
		if limit, ok := IntValue(entities["limit"]); ok {
			out.Limit = &limit
		}
	}

	clarifications := result.Clarifications
	if clarifications == nil {
		clarifications = []string{}
	}
	return FrontendIntent{
		Success:        result.Success,
		Intent:         result.Intent,
		Type:           kind,
		Entities:       out,
		Confidence:     result.Confidence,
		Clarifications: clarifications,
	}
}

// PrimaryMetric prefers an explicit metric and falls back to the first
// extracted metric code.
func PrimaryMetric(entities map[string]any) string {
	if metric := StringValue(entities["metric"]); metric != "" {
		return metric
	}
	if metrics := StringList(entities[EntityMetrics]); len(metrics) > 0 {
		return metrics[0]
	}
	return ""
}

func TableName(entities map[string]any) string {
	if name := StringValue(entities["tableName"]); name != "" {
		return name
	}
	return StringValue(entities[EntityTable])
}

// StringList normalizes a scalar or list entity to a list of strings. The
// result is never nil.
func StringList(value any) []string {
	switch v := value.(type) {
	case nil:
		return []string{}
	case string:
		if v == "" {
			return []string{}
		}
		return []string{v}
	case []string:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item != "" {
				out = append(out, item)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := StringValue(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}

func StringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func IntValue(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n, true
		}
	}
	return 0, false
}

func Truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		return err == nil && b
	default:
		return present(v)
	}
}
