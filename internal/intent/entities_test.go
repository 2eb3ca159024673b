package intent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractEntities(t *testing.T) {
	vocab, err := DefaultVocabulary()
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
		want map[string]any
	}{
		{
			name: "named time range and metric",
			text: "查询今天的产量",
			want: map[string]any{EntityTimeRange: "today", EntityMetrics: []string{"output_qty"}},
		},
		{
			name: "numeric time range and deduplicated metrics",
			text: "最近30天的良品率和良率以及OEE",
			want: map[string]any{EntityTimeRange: "30天", EntityMetrics: []string{"yield_rate", "oee"}},
		},
		{
			name: "named phrase wins over numeric",
			text: "今天和最近7天的停机",
			want: map[string]any{EntityTimeRange: "today", EntityMetrics: []string{"downtime"}},
		},
		{
			name: "table and limit",
			text: "返回 wafers 表的前300条数据",
			want: map[string]any{EntityTable: "wafers", EntityLimit: 300},
		},
		{
			name: "equipment marker",
			text: "上周设备号: M-07的稼动率",
			want: map[string]any{EntityTimeRange: "last_week", EntityEquipment: "M-07", EntityMetrics: []string{"utilization_rate"}},
		},
		{
			name: "product line marker",
			text: "产线L2本月效率",
			want: map[string]any{EntityTimeRange: "this_month", EntityProductLine: "L2", EntityMetrics: []string{"efficiency"}},
		},
		{
			name: "nothing",
			text: "hello",
			want: map[string]any{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, vocab.ExtractEntities(tc.text))
		})
	}
}

func TestClarifications(t *testing.T) {
	vocab, err := DefaultVocabulary()
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"Your intent is not clear enough. Please provide more information."},
		vocab.Clarifications(QueryProduction, 0.3, 0.5, map[string]any{}),
	)
	assert.Equal(t,
		[]string{"Please specify the product line or product type."},
		vocab.Clarifications(QueryProduction, 0.9, 0.5, map[string]any{EntityTimeRange: "today"}),
	)
	assert.Empty(t, vocab.Clarifications(QueryProduction, 0.9, 0.5, map[string]any{EntityTimeRange: "today", "productType": "wafer"}))
	assert.Equal(t,
		[]string{"Which equipment metric do you want to know?", "Please specify the time range."},
		vocab.Clarifications(QueryEquipment, 0.6, 0.5, map[string]any{EntityMetrics: []string{}}),
	)
	assert.Empty(t, vocab.Clarifications(DirectQuery, 0.9, 0.5, map[string]any{}))
	assert.Empty(t, vocab.Clarifications(Other, 0.9, 0.5, map[string]any{}))
}

func TestParseVocabularyRejectsInvalidTables(t *testing.T) {
	tests := map[string]string{
		"no intents":      "unclear_prompt: x\nintents: []\n",
		"unknown intent":  "unclear_prompt: x\nintents:\n  - name: weather\n    keywords: [rain]\n",
		"other declared":  "unclear_prompt: x\nintents:\n  - name: other\n    keywords: [x]\n",
		"no keywords":     "unclear_prompt: x\nintents:\n  - name: query_quality\n    keywords: []\n",
		"duplicate":       "unclear_prompt: x\nintents:\n  - name: query_quality\n    keywords: [a]\n  - name: query_quality\n    keywords: [b]\n",
		"bad regex":       "unclear_prompt: x\nintents:\n  - name: query_quality\n    keywords: [a]\nentities:\n  table: '(['\n",
		"wrong groups":    "unclear_prompt: x\nintents:\n  - name: query_quality\n    keywords: [a]\nentities:\n  relative_time: '(\\d+)'\n",
		"missing prompt":  "intents:\n  - name: query_quality\n    keywords: [a]\n",
		"bad requirement": "unclear_prompt: x\nintents:\n  - name: query_quality\n    keywords: [a]\n    required:\n      - any_of: []\n        prompt: p\n",
		"not yaml":        "intents: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseVocabulary([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadVocabularyFromFile(t *testing.T) {
	doc := `
unclear_prompt: 请补充更多信息
intents:
  - name: query_equipment
    description: Equipment status
    keywords: [machine, downtime]
entities:
  equipment: 'machine\s+([A-Z0-9]+)'
  metrics:
    - keyword: downtime
      code: downtime
`
	path := filepath.Join(t.TempDir(), "vocabulary.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	vocab, err := LoadVocabulary(path)
	require.NoError(t, err)
	require.Len(t, vocab.Intents(), 1)

	r := NewRecognizer(vocab, nil, Options{})
	got := r.Recognize(t.Context(), "machine M7 downtime")
	assert.Equal(t, QueryEquipment, got.Intent)
	assert.Equal(t, []Method{MethodRule}, got.MethodsUsed)
	assert.Equal(t, "M7", got.Entities[EntityEquipment])
	assert.Equal(t, []string{"downtime"}, got.Entities[EntityMetrics])

	_, err = LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
