package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// Entity keys produced by rule-based extraction.
const (
	EntityTimeRange   = "timeRange"
	EntityTable       = "table"
	EntityLimit       = "limit"
	EntityMetrics     = "metrics"
	EntityEquipment   = "equipment"
	EntityProductLine = "productLine"
)

// ExtractEntities runs every entity pattern against text. Within each entity
// class the first matching pattern wins.
func (v *Vocabulary) ExtractEntities(text string) map[string]any {
	entities := make(map[string]any)

	for _, tr := range v.timeRanges {
		if tr.pattern.MatchString(text) {
			entities[EntityTimeRange] = tr.value
			break
		}
	}
	if _, named := entities[EntityTimeRange]; !named && v.relativeTime != nil {
		if m := v.relativeTime.FindStringSubmatch(text); m != nil {
			entities[EntityTimeRange] = m[1] + m[2]
		}
	}

	if m := firstCapture(v.table, text); m != "" {
		entities[EntityTable] = m
	}
	if m := firstCapture(v.limit, text); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			entities[EntityLimit] = n
		}
	}

	lowered := strings.ToLower(text)
	var metrics []string
	seen := make(map[string]bool)
	for _, mk := range v.metrics {
		if seen[mk.Code] || !strings.Contains(lowered, strings.ToLower(mk.Keyword)) {
			continue
		}
		seen[mk.Code] = true
		metrics = append(metrics, mk.Code)
	}
	if len(metrics) > 0 {
		entities[EntityMetrics] = metrics
	}

	if m := firstCapture(v.equipment, text); m != "" {
		entities[EntityEquipment] = m
	}
	if m := firstCapture(v.productLine, text); m != "" {
		entities[EntityProductLine] = m
	}
	return entities
}

func firstCapture(re *regexp.Regexp, text string) string {
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// present mirrors the "has a usable value" test used by clarification checks:
// nil, empty strings, empty collections, false and zero count as absent.
func present(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case bool:
		return v
	case int:
		return v != 0
	case float64:
		return v != 0
	case []string:
		return len(v) > 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
