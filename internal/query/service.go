package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/duckmesh/mesquery/internal/annotation"
	"github.com/duckmesh/mesquery/internal/intent"
	"github.com/duckmesh/mesquery/internal/llm"
	"github.com/duckmesh/mesquery/internal/observability"
)

const (
	generationFailedMessage = "无法为您的查询生成SQL。请尝试用不同的方式描述您的问题。"
	defaultExplanation      = "这个查询将检索符合条件的数据"
)

type IntentRecognizer interface {
	Recognize(ctx context.Context, text string) intent.Result
}

type SQLGenerator interface {
	Convert(ctx context.Context, naturalLanguage string) (string, error)
	MetadataSummary() annotation.Summary
	MetadataUpdatedAt() time.Time
}

type Config struct {
	// ClarifyThreshold is the confidence below which no SQL is attempted.
	ClarifyThreshold float64

	// SQLConfidence is reported on every plan that carries SQL.
	SQLConfidence float64
}

// Service orchestrates one request: classify, generate, explain and
// optionally execute. Stages run sequentially.
type Service struct {
	Recognizer IntentRecognizer
	Generator  SQLGenerator
	Explainer  llm.Provider
	Executor   *Executor
	Config     Config
	Logger     *slog.Logger
	Clock      func() time.Time

	defaults sync.Once
}

// ensureDefaults fills unset fields once; the service is shared across
// requests.
func (s *Service) ensureDefaults() {
	s.defaults.Do(s.applyDefaults)
}

func (s *Service) applyDefaults() {
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.Config.ClarifyThreshold <= 0 {
		s.Config.ClarifyThreshold = 0.6
	}
	if s.Config.SQLConfidence <= 0 {
		s.Config.SQLConfidence = 0.85
	}
	s.Logger = observability.LoggerOrDefault(s.Logger)
	if s.Executor == nil {
		s.Executor = &Executor{Logger: s.Logger, Clock: s.Clock}
	}
}

func (s *Service) RecognizeIntent(ctx context.Context, text string) (intent.Result, error) {
	s.ensureDefaults()
	text = strings.TrimSpace(text)
	if text == "" {
		return intent.Result{}, ErrEmptyQuery
	}
	return s.Recognizer.Recognize(ctx, text), nil
}

// ProcessQuery returns a plan, and a result only in execute mode. Only input
// validation errors are returned; every pipeline failure is expressed in the
// plan or the result.
func (s *Service) ProcessQuery(ctx context.Context, text string, mode ExecutionMode) (QueryPlan, *QueryResult, error) {
	s.ensureDefaults()
	text = strings.TrimSpace(text)
	if text == "" {
		return QueryPlan{}, nil, ErrEmptyQuery
	}
	if mode != ModeExplain && mode != ModeExecute {
		return QueryPlan{}, nil, ErrInvalidMode
	}
	start := s.Clock()

	recognized := s.Recognizer.Recognize(ctx, text)
	qi := BuildQueryIntent(text, recognized, s.Config.ClarifyThreshold)
	if qi.ClarificationNeeded {
		observability.ObserveQueryPlan("clarification")
		return QueryPlan{
			QueryIntent:           qi,
			RequiresClarification: true,
			ClarificationMessage:  clarificationMessage(qi),
		}, nil, nil
	}

	sql, err := s.Generator.Convert(ctx, OptimizedQuery(qi))
	if err != nil || strings.TrimSpace(sql) == "" {
		s.Logger.WarnContext(ctx, "sql generation failed", "error", err)
		observability.ObserveQueryPlan("generation_failed")
		return QueryPlan{
			QueryIntent:           qi,
			RequiresClarification: true,
			ClarificationMessage:  generationFailedMessage,
		}, nil, nil
	}

	plan := QueryPlan{
		QueryIntent:          qi,
		GeneratedSQL:         sql,
		SQLConfidence:        s.Config.SQLConfidence,
		SuggestedSQLVariants: s.variants(ctx, qi, sql),
		SchemaContext:        s.schemaContext(qi),
		Explanation:          s.explain(ctx, sql, qi),
	}
	observability.ObserveQueryPlan("planned")

	if mode == ModeExplain {
		return plan, nil, nil
	}
	result := s.Executor.Execute(ctx, sql, &qi, start)
	return plan, &result, nil
}

// ExecuteApproved runs caller-reviewed SQL without classification or
// generation. qi may be nil.
func (s *Service) ExecuteApproved(ctx context.Context, sql string, qi *QueryIntent) (QueryResult, error) {
	s.ensureDefaults()
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return QueryResult{}, ErrEmptySQL
	}
	return s.Executor.Execute(ctx, sql, qi, s.Clock()), nil
}

func (s *Service) variants(ctx context.Context, qi QueryIntent, sql string) []string {
	if !qi.Comparison {
		return nil
	}
	alternative, err := s.Generator.Convert(ctx, comparisonQuery(qi))
	if err != nil {
		s.Logger.WarnContext(ctx, "comparison variant generation failed", "error", err)
		return nil
	}
	if alternative == "" || alternative == sql {
		return nil
	}
	return []string{alternative}
}

func (s *Service) schemaContext(qi QueryIntent) *SchemaContext {
	summary := s.Generator.MetadataSummary()
	tables := summary.TableNames
	if tables == nil {
		tables = []string{}
	}
	sc := &SchemaContext{
		Tables:          tables,
		TotalColumns:    summary.Columns,
		RelevantContext: []string{},
	}
	if updated := s.Generator.MetadataUpdatedAt(); !updated.IsZero() {
		sc.MetadataUpdated = &updated
	}
	if qi.Metric != "" {
		sc.RelevantContext = append(sc.RelevantContext, "查询指标: "+qi.Metric)
	}
	if qi.TableName != "" {
		sc.RelevantContext = append(sc.RelevantContext, "目标表: "+qi.TableName)
	}
	return sc
}

// explain never fails; a provider error yields the default sentence.
func (s *Service) explain(ctx context.Context, sql string, qi QueryIntent) string {
	if s.Explainer == nil {
		return defaultExplanation
	}
	prompt := fmt.Sprintf("请用中文简洁地解释以下SQL查询的含义和作用:\n\nSQL: %s\n\n查询意图: %s\n\n请生成不超过2句话的解释。", sql, qi.NaturalLanguage)
	explanation, err := s.Explainer.Complete(ctx, prompt)
	if err != nil {
		s.Logger.WarnContext(ctx, "sql explanation failed", "error", err)
		return defaultExplanation
	}
	explanation = strings.TrimSpace(explanation)
	if explanation == "" {
		return defaultExplanation
	}
	return explanation
}
