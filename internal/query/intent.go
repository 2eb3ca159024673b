package query

import (
	"fmt"
	"strings"

	"github.com/duckmesh/mesquery/internal/intent"
)

const (
	questionMetric    = "您想查询哪个指标？(OEE, 良率, 效率, 停机时间等)"
	questionTimeRange = "您想查询哪个时间段？(今天, 本周, 本月等)"
)

// BuildQueryIntent derives the orchestrator's view of a recognition result.
// Questions are only attached when confidence is below threshold.
func BuildQueryIntent(text string, result intent.Result, threshold float64) QueryIntent {
	entities := result.Entities
	qi := QueryIntent{
		NaturalLanguage: text,
		Metric:          intent.PrimaryMetric(entities),
		TimeRange:       intent.StringValue(entities[intent.EntityTimeRange]),
		Equipment:       intent.StringList(entities[intent.EntityEquipment]),
		Shift:           intent.StringList(entities["shift"]),
		TableName:       intent.TableName(entities),
		Comparison:      intent.Truthy(entities["comparison"]),
		Confidence:      result.Confidence,
		RawIntentData:   rawIntentData(result),
	}
	qi.QueryType = queryTypeFor(result.Intent, qi)

	if qi.Confidence < threshold {
		qi.ClarificationNeeded = true
		qi.ClarificationQuestions = []string{}
		if qi.Metric == "" {
			qi.ClarificationQuestions = append(qi.ClarificationQuestions, questionMetric)
		}
		if qi.TimeRange == "" {
			qi.ClarificationQuestions = append(qi.ClarificationQuestions, questionTimeRange)
		}
	}
	return qi
}

func queryTypeFor(name intent.Name, qi QueryIntent) QueryType {
	switch {
	case qi.TableName != "" || name == intent.DirectQuery:
		return DirectTableQuery
	case qi.Comparison:
		return ComparisonQuery
	case name == intent.CompareAnalysis:
		return TrendQuery
	case name == intent.GenerateReport:
		return AggregateQuery
	case qi.Metric != "":
		return MetricQuery
	default:
		return UnknownQuery
	}
}

func rawIntentData(result intent.Result) map[string]any {
	return map[string]any{
		"intent":      string(result.Intent),
		"confidence":  result.Confidence,
		"entities":    result.Entities,
		"methodsUsed": result.MethodsUsed,
		"reasoning":   result.Reasoning,
	}
}

func clarificationMessage(qi QueryIntent) string {
	if len(qi.ClarificationQuestions) == 0 {
		return "无法完全理解您的查询意图，请提供更多详细信息"
	}
	var b strings.Builder
	b.WriteString("为了更准确地理解您的查询，请回答以下问题：")
	for _, question := range qi.ClarificationQuestions {
		b.WriteString("\n• ")
		b.WriteString(question)
	}
	return b.String()
}

// OptimizedQuery restates the intent from its present fields, falling back to
// the original text when none are set.
func OptimizedQuery(qi QueryIntent) string {
	parts := make([]string, 0, 5)
	if qi.Metric != "" {
		parts = append(parts, "查询 "+qi.Metric)
	}
	if qi.TimeRange != "" {
		parts = append(parts, "在 "+qi.TimeRange)
	}
	if len(qi.Equipment) > 0 {
		parts = append(parts, "设备 "+strings.Join(qi.Equipment, ","))
	}
	if len(qi.Shift) > 0 {
		parts = append(parts, "班次 "+strings.Join(qi.Shift, ","))
	}
	if qi.Comparison {
		parts = append(parts, "按设备对比")
	}
	if len(parts) == 0 {
		return qi.NaturalLanguage
	}
	return strings.Join(parts, " ")
}

func comparisonQuery(qi QueryIntent) string {
	return fmt.Sprintf("对比%s在不同设备间的差异 %s", qi.Metric, OptimizedQuery(qi))
}
