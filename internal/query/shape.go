package query

import "fmt"

var gaugeMetrics = map[string]bool{
	"oee":        true,
	"yield_rate": true,
	"quality":    true,
}

// VisualizationFor depends only on the intent. A comparison always renders as
// bars.
func VisualizationFor(qi *QueryIntent) VisualizationType {
	if qi == nil {
		return VisualizationTable
	}
	switch {
	case qi.Comparison:
		return VisualizationBar
	case qi.QueryType == TrendQuery:
		return VisualizationLine
	case qi.QueryType == MetricQuery:
		if gaugeMetrics[qi.Metric] {
			return VisualizationGauge
		}
		return VisualizationLine
	default:
		return VisualizationTable
	}
}

// ActionsFor always includes export and refresh. Tags are unique and keep
// insertion order.
func ActionsFor(qi *QueryIntent) []string {
	actions := []string{"export", "refresh"}
	if qi != nil {
		switch {
		case qi.Comparison:
			actions = append(actions, "detail", "trend")
		case qi.QueryType == MetricQuery:
			actions = append(actions, "detail", "drilldown", "schedule")
		case qi.QueryType == TrendQuery:
			actions = append(actions, "detail", "alert")
		}
	}
	return dedupe(actions)
}

func SummaryFor(qi *QueryIntent, rows int) string {
	if rows == 0 {
		return "查询成功但没有返回数据"
	}
	if qi != nil {
		if qi.Metric != "" {
			return fmt.Sprintf("查询得到 %d 条%s的数据记录", rows, qi.Metric)
		}
		if qi.TableName != "" {
			return fmt.Sprintf("从表 %s 查询到 %d 条数据", qi.TableName, rows)
		}
	}
	return fmt.Sprintf("查询成功，返回 %d 条数据记录", rows)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, value)
	}
	return out
}
