package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duckmesh/mesquery/internal/annotation"
	"github.com/duckmesh/mesquery/internal/intent"
	"github.com/duckmesh/mesquery/internal/llm"
	"github.com/duckmesh/mesquery/internal/rowstore"
)

type fakeRecognizer struct {
	result intent.Result
	calls  int
}

func (f *fakeRecognizer) Recognize(_ context.Context, _ string) intent.Result {
	f.calls++
	return f.result
}

type fakeGenerator struct {
	mu        sync.Mutex
	sql       map[string]string
	err       error
	inputs    []string
	summary   annotation.Summary
	updatedAt time.Time
}

func (f *fakeGenerator) Convert(_ context.Context, nl string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, nl)
	if f.err != nil {
		return "", f.err
	}
	if sql, ok := f.sql[nl]; ok {
		return sql, nil
	}
	return "SELECT * FROM oee_records", nil
}

func (f *fakeGenerator) MetadataSummary() annotation.Summary { return f.summary }

func (f *fakeGenerator) MetadataUpdatedAt() time.Time { return f.updatedAt }

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

type fakeExplainer struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeExplainer) Name() string { return "fake" }

func (f *fakeExplainer) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

type fakeRowStore struct {
	rows   map[string][]rowstore.Row
	err    error
	tables []string
}

func (f *fakeRowStore) SelectAll(_ context.Context, table string) ([]rowstore.Row, error) {
	f.tables = append(f.tables, table)
	if f.err != nil {
		return nil, f.err
	}
	rows, ok := f.rows[table]
	if !ok {
		return nil, rowstore.ErrTableNotFound
	}
	return rows, nil
}

var fixedNow = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

func oeeRows() []rowstore.Row {
	columns := []string{"equipment_id", "oee"}
	return []rowstore.Row{
		rowstore.NewRow(columns, []any{"EQ-1", 0.82}),
		rowstore.NewRow(columns, []any{"EQ-2", 0.77}),
	}
}

func newTestService(result intent.Result) (*Service, *fakeRecognizer, *fakeGenerator, *fakeExplainer, *fakeRowStore) {
	recognizer := &fakeRecognizer{result: result}
	generator := &fakeGenerator{
		sql:       map[string]string{},
		summary:   annotation.Summary{Tables: 1, Columns: 2, TableNames: []string{"oee_records"}},
		updatedAt: fixedNow,
	}
	explainer := &fakeExplainer{response: "统计各设备的OEE。"}
	store := &fakeRowStore{rows: map[string][]rowstore.Row{"oee_records": oeeRows()}}
	svc := &Service{
		Recognizer: recognizer,
		Generator:  generator,
		Explainer:  explainer,
		Executor:   &Executor{Store: store, Clock: func() time.Time { return fixedNow }},
		Clock:      func() time.Time { return fixedNow },
	}
	return svc, recognizer, generator, explainer, store
}

func oeeResult(confidence float64) intent.Result {
	return intent.Result{
		Success:     true,
		Intent:      intent.QueryQuality,
		Confidence:  confidence,
		Entities:    map[string]any{"metric": "oee", intent.EntityTimeRange: "today"},
		MethodsUsed: []intent.Method{intent.MethodRule, intent.MethodLLM},
	}
}

func TestProcessQueryLowConfidenceNeedsClarification(t *testing.T) {
	svc, _, generator, explainer, _ := newTestService(intent.Result{
		Success:    true,
		Intent:     intent.Other,
		Confidence: 0.3,
		Entities:   map[string]any{},
	})

	plan, result, err := svc.ProcessQuery(context.Background(), "看看", ModeExecute)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.True(t, plan.RequiresClarification)
	assert.Empty(t, plan.GeneratedSQL)
	assert.Zero(t, generator.calls())
	assert.Empty(t, explainer.prompts)
	assert.Equal(t, []string{questionMetric, questionTimeRange}, plan.QueryIntent.ClarificationQuestions)
	assert.Equal(t, "为了更准确地理解您的查询，请回答以下问题：\n• "+questionMetric+"\n• "+questionTimeRange, plan.ClarificationMessage)
}

func TestProcessQueryLowConfidenceWithAllEntities(t *testing.T) {
	svc, _, _, _, _ := newTestService(oeeResult(0.5))

	plan, _, err := svc.ProcessQuery(context.Background(), "今天OEE", ModeExplain)
	require.NoError(t, err)
	assert.True(t, plan.RequiresClarification)
	assert.Empty(t, plan.QueryIntent.ClarificationQuestions)
	assert.Equal(t, "无法完全理解您的查询意图，请提供更多详细信息", plan.ClarificationMessage)
}

func TestProcessQueryExplainBuildsPlan(t *testing.T) {
	svc, _, generator, explainer, store := newTestService(oeeResult(0.9))

	plan, result, err := svc.ProcessQuery(context.Background(), "查询今天的OEE", ModeExplain)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Empty(t, store.tables)

	assert.False(t, plan.RequiresClarification)
	assert.Equal(t, "SELECT * FROM oee_records", plan.GeneratedSQL)
	assert.InDelta(t, 0.85, plan.SQLConfidence, 1e-9)
	assert.Equal(t, []string{"查询 oee 在 today"}, generator.inputs)
	assert.Nil(t, plan.SuggestedSQLVariants)
	assert.Equal(t, "统计各设备的OEE。", plan.Explanation)
	require.Len(t, explainer.prompts, 1)
	assert.Contains(t, explainer.prompts[0], "SQL: SELECT * FROM oee_records")
	assert.Contains(t, explainer.prompts[0], "查询意图: 查询今天的OEE")

	require.NotNil(t, plan.SchemaContext)
	assert.Equal(t, []string{"oee_records"}, plan.SchemaContext.Tables)
	assert.Equal(t, 2, plan.SchemaContext.TotalColumns)
	require.NotNil(t, plan.SchemaContext.MetadataUpdated)
	assert.Equal(t, fixedNow, *plan.SchemaContext.MetadataUpdated)
	assert.Equal(t, []string{"查询指标: oee"}, plan.SchemaContext.RelevantContext)

	assert.Equal(t, MetricQuery, plan.QueryIntent.QueryType)
	assert.Equal(t, "oee", plan.QueryIntent.Metric)
	assert.False(t, plan.QueryIntent.ClarificationNeeded)
	assert.Equal(t, "query_quality", plan.QueryIntent.RawIntentData["intent"])
}

func TestProcessQueryExecuteShapesResult(t *testing.T) {
	svc, _, _, _, store := newTestService(oeeResult(0.9))

	plan, result, err := svc.ProcessQuery(context.Background(), "查询今天的OEE", ModeExecute)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, []string{"oee_records"}, store.tables)

	assert.True(t, result.Success)
	assert.Equal(t, plan.GeneratedSQL, result.SQL)
	assert.Equal(t, 2, result.RowsCount)
	assert.Len(t, result.Data, result.RowsCount)
	assert.Equal(t, []string{"equipment_id", "oee"}, result.Columns)
	assert.Equal(t, VisualizationGauge, result.VisualizationType)
	assert.Equal(t, []string{"export", "refresh", "detail", "drilldown", "schedule"}, result.Actions)
	assert.Equal(t, "查询得到 2 条oee的数据记录", result.Summary)
	assert.Empty(t, result.ErrorMessage)
	assert.Equal(t, fixedNow, result.GeneratedAt)
	assert.GreaterOrEqual(t, result.QueryTimeMs, 0.0)
}

func TestProcessQueryGenerationFailure(t *testing.T) {
	svc, _, generator, explainer, _ := newTestService(oeeResult(0.9))
	generator.err = errors.New("generator offline")

	plan, result, err := svc.ProcessQuery(context.Background(), "查询今天的OEE", ModeExecute)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.True(t, plan.RequiresClarification)
	assert.Empty(t, plan.GeneratedSQL)
	assert.Equal(t, generationFailedMessage, plan.ClarificationMessage)
	assert.Empty(t, explainer.prompts)
}

func TestProcessQueryComparisonAddsVariant(t *testing.T) {
	result := oeeResult(0.9)
	result.Entities["comparison"] = true
	result.Entities[intent.EntityEquipment] = "EQ-1"
	svc, _, generator, _, _ := newTestService(result)
	generator.sql["对比oee在不同设备间的差异 查询 oee 在 today 设备 EQ-1 按设备对比"] = "SELECT equipment_id, avg(oee) FROM oee_records GROUP BY equipment_id"

	plan, queryResult, err := svc.ProcessQuery(context.Background(), "对比今天各设备的OEE", ModeExecute)
	require.NoError(t, err)
	assert.Equal(t, ComparisonQuery, plan.QueryIntent.QueryType)
	assert.Equal(t, []string{"EQ-1"}, plan.QueryIntent.Equipment)
	assert.Equal(t, []string{"SELECT equipment_id, avg(oee) FROM oee_records GROUP BY equipment_id"}, plan.SuggestedSQLVariants)
	require.NotNil(t, queryResult)
	assert.Equal(t, VisualizationBar, queryResult.VisualizationType)
	assert.Equal(t, []string{"export", "refresh", "detail", "trend"}, queryResult.Actions)
}

func TestProcessQueryComparisonVariantDroppedWhenIdentical(t *testing.T) {
	result := oeeResult(0.9)
	result.Entities["comparison"] = true
	svc, _, generator, _, _ := newTestService(result)

	plan, _, err := svc.ProcessQuery(context.Background(), "对比OEE", ModeExplain)
	require.NoError(t, err)
	assert.Equal(t, 2, generator.calls())
	assert.Nil(t, plan.SuggestedSQLVariants)
}

func TestProcessQueryExplanationFailureIsSwallowed(t *testing.T) {
	svc, _, _, explainer, _ := newTestService(oeeResult(0.9))
	explainer.err = &llm.ProviderError{Provider: "fake", Kind: llm.FailureTimeout}

	plan, _, err := svc.ProcessQuery(context.Background(), "查询今天的OEE", ModeExplain)
	require.NoError(t, err)
	assert.Equal(t, defaultExplanation, plan.Explanation)
	assert.False(t, plan.RequiresClarification)
}

func TestProcessQueryExecutionFailureIsReported(t *testing.T) {
	svc, _, _, _, store := newTestService(oeeResult(0.9))
	store.err = rowstore.ErrUnavailable

	plan, result, err := svc.ProcessQuery(context.Background(), "查询今天的OEE", ModeExecute)
	require.NoError(t, err)
	assert.NotEmpty(t, plan.GeneratedSQL)
	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, "查询执行失败: row store unavailable", result.ErrorMessage)
	assert.Zero(t, result.RowsCount)
	assert.Empty(t, result.Data)
}

func TestProcessQueryValidation(t *testing.T) {
	svc, recognizer, _, _, _ := newTestService(oeeResult(0.9))

	_, _, err := svc.ProcessQuery(context.Background(), "  ", ModeExplain)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, _, err = svc.ProcessQuery(context.Background(), "查询", ExecutionMode("dry-run"))
	assert.ErrorIs(t, err, ErrInvalidMode)
	assert.Zero(t, recognizer.calls)

	_, err = svc.RecognizeIntent(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRecognizeIntentDelegates(t *testing.T) {
	svc, recognizer, _, _, _ := newTestService(oeeResult(0.9))

	got, err := svc.RecognizeIntent(context.Background(), "查询今天的OEE")
	require.NoError(t, err)
	assert.Equal(t, intent.QueryQuality, got.Intent)
	assert.Equal(t, 1, recognizer.calls)
}

func TestExecuteApproved(t *testing.T) {
	svc, recognizer, generator, _, store := newTestService(oeeResult(0.9))

	result, err := svc.ExecuteApproved(context.Background(), `SELECT * FROM public."oee_records" LIMIT 5`, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, []string{"oee_records"}, store.tables)
	assert.Equal(t, "查询成功，返回 2 条数据记录", result.Summary)
	assert.Equal(t, VisualizationTable, result.VisualizationType)
	assert.Equal(t, []string{"export", "refresh"}, result.Actions)
	assert.Zero(t, recognizer.calls)
	assert.Zero(t, generator.calls())

	_, err = svc.ExecuteApproved(context.Background(), " ", nil)
	assert.ErrorIs(t, err, ErrEmptySQL)
}

func TestPlanAndResultInvariants(t *testing.T) {
	confidences := []float64{0, 0.3, 0.59, 0.6, 0.9, 1}
	for _, confidence := range confidences {
		for _, failGeneration := range []bool{false, true} {
			svc, _, generator, _, _ := newTestService(oeeResult(confidence))
			if failGeneration {
				generator.err = errors.New("offline")
			}
			plan, result, err := svc.ProcessQuery(context.Background(), "查询今天的OEE", ModeExecute)
			require.NoError(t, err)
			if !plan.RequiresClarification {
				assert.NotEmpty(t, plan.GeneratedSQL, "confidence %v", confidence)
			}
			if result != nil && result.Success {
				assert.Equal(t, len(result.Data), result.RowsCount)
			}
			if result != nil && !result.Success {
				assert.NotEmpty(t, result.ErrorMessage)
			}
		}
	}
}
