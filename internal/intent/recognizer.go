package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/duckmesh/mesquery/internal/llm"
	"github.com/duckmesh/mesquery/internal/observability"
)

type Name string

const (
	DirectQuery     Name = "direct_query"
	QueryProduction Name = "query_production"
	QueryQuality    Name = "query_quality"
	QueryEquipment  Name = "query_equipment"
	GenerateReport  Name = "generate_report"
	CompareAnalysis Name = "compare_analysis"
	Other           Name = "other"
)

func (n Name) Valid() bool {
	switch n {
	case DirectQuery, QueryProduction, QueryQuality, QueryEquipment, GenerateReport, CompareAnalysis, Other:
		return true
	default:
		return false
	}
}

type Method string

const (
	MethodRule Method = "rule"
	MethodLLM  Method = "llm"
)

type Result struct {
	Success        bool           `json:"success"`
	Intent         Name           `json:"intent"`
	Confidence     float64        `json:"confidence"`
	Entities       map[string]any `json:"entities"`
	Clarifications []string       `json:"clarifications"`
	MethodsUsed    []Method       `json:"methodsUsed"`
	Reasoning      string         `json:"reasoning,omitempty"`
	Error          string         `json:"error,omitempty"`
}

type Options struct {
	// ShortCircuitConfidence is the rule score above which the LLM stage is skipped.
	ShortCircuitConfidence float64

	// ClarifyThreshold is the confidence below which only the generic prompt is returned.
	ClarifyThreshold float64

	Logger *slog.Logger
}

type Recognizer struct {
	vocab        *Vocabulary
	provider     llm.Provider
	shortCircuit float64
	clarifyBelow float64
	logger       *slog.Logger
}

// NewRecognizer builds a hybrid recognizer. provider may be nil, in which case
// the LLM stage always degrades.
func NewRecognizer(vocab *Vocabulary, provider llm.Provider, opts Options) *Recognizer {
	shortCircuit := opts.ShortCircuitConfidence
	if shortCircuit <= 0 {
		shortCircuit = 0.8
	}
	clarifyBelow := opts.ClarifyThreshold
	if clarifyBelow <= 0 {
		clarifyBelow = 0.5
	}
	return &Recognizer{
		vocab:        vocab,
		provider:     provider,
		shortCircuit: shortCircuit,
		clarifyBelow: clarifyBelow,
		logger:       observability.LoggerOrDefault(opts.Logger),
	}
}

func (r *Recognizer) Vocabulary() *Vocabulary {
	return r.vocab
}

func (r *Recognizer) Recognize(ctx context.Context, text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{
			Intent:         Other,
			Entities:       map[string]any{},
			Clarifications: []string{},
			MethodsUsed:    []Method{},
			Error:          "query text is empty",
		}
	}

	rule := r.ruleMatch(text)
	r.logger.DebugContext(ctx, "intent rule match",
		slog.String("intent", string(rule.intent)),
		slog.Float64("confidence", rule.confidence),
	)

	if rule.confidence > r.shortCircuit {
		observability.ObserveIntentRecognition(string(rule.intent), "rule")
		return Result{
			Success:        true,
			Intent:         rule.intent,
			Confidence:     rule.confidence,
			Entities:       rule.entities,
			Clarifications: r.vocab.Clarifications(rule.intent, rule.confidence, r.clarifyBelow, rule.entities),
			MethodsUsed:    []Method{MethodRule},
		}
	}

	verdict, err := r.llmMatch(ctx, text)
	if err != nil {
		r.logger.WarnContext(ctx, "intent llm stage degraded",
			slog.String("trace_id", observability.TraceIDFromContext(ctx)),
			slog.String("error", err.Error()),
		)
	}

	merged := merge(rule, verdict)
	observability.ObserveIntentRecognition(string(merged.intent), "hybrid")
	return Result{
		Success:        true,
		Intent:         merged.intent,
		Confidence:     merged.confidence,
		Entities:       merged.entities,
		Clarifications: r.vocab.Clarifications(merged.intent, merged.confidence, r.clarifyBelow, merged.entities),
		MethodsUsed:    []Method{MethodRule, MethodLLM},
		Reasoning:      verdict.reasoning,
	}
}

type stageResult struct {
	intent     Name
	confidence float64
	entities   map[string]any
	reasoning  string
}

func (r *Recognizer) ruleMatch(text string) stageResult {
	lowered := strings.ToLower(text)
	best := stageResult{intent: Other, entities: map[string]any{}}
	for _, spec := range r.vocab.intents {
		hits := 0
		for _, keyword := range spec.Keywords {
			if strings.Contains(lowered, strings.ToLower(keyword)) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := float64(hits) / float64(len(spec.Keywords))
		if score > best.confidence {
			best.intent = spec.Name
			best.confidence = score
		}
	}
	if best.intent != Other {
		best.entities = r.vocab.ExtractEntities(text)
	}
	return best
}

func (r *Recognizer) llmMatch(ctx context.Context, text string) (stageResult, error) {
	degraded := func(note string) stageResult {
		return stageResult{intent: Other, entities: map[string]any{}, reasoning: note}
	}
	if r.provider == nil {
		return degraded("LLM provider not available"), errors.New("llm provider not configured")
	}

	raw, err := r.provider.Complete(ctx, r.buildPrompt(text))
	if err != nil {
		return degraded("LLM error: " + err.Error()), err
	}
	verdict, err := parseVerdict(llm.StripCodeFence(raw))
	if err != nil {
		perr := &llm.ProviderError{Provider: r.provider.Name(), Kind: llm.FailureMalformed, Err: err}
		return degraded("Failed to parse LLM response"), perr
	}
	return verdict, nil
}

func (r *Recognizer) buildPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Analyze the user query intent in MES system.\n\n")
	b.WriteString("Possible intent types and descriptions:\n")
	names := make([]string, 0, len(r.vocab.intents)+1)
	for _, spec := range r.vocab.intents {
		fmt.Fprintf(&b, "- %s: %s\n", spec.Name, spec.Description)
		names = append(names, string(spec.Name))
	}
	names = append(names, string(Other))
	fmt.Fprintf(&b, "\nUser input: %q\n\n", text)
	fmt.Fprintf(&b, "The intent must be one of: %s.\n", strings.Join(names, ", "))
	b.WriteString(`Return analysis result in JSON format (must be valid JSON):
{
    "intent": "intent_type",
    "confidence": 0.95,
    "entities": {
        "timeRange": "time_range",
        "metric": "metric"
    },
    "reasoning": "reason_for_judgment"
}`)
	return b.String()
}

// parseVerdict decodes the model's JSON answer against a strict shape.
func parseVerdict(body string) (stageResult, error) {
	var verdict struct {
		Intent     string         `json:"intent"`
		Confidence *float64       `json:"confidence"`
		Entities   map[string]any `json:"entities"`
		Reasoning  string         `json:"reasoning"`
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	if err := dec.Decode(&verdict); err != nil {
		return stageResult{}, fmt.Errorf("decode intent verdict: %w", err)
	}
	name := Name(strings.TrimSpace(verdict.Intent))
	if !name.Valid() {
		return stageResult{}, fmt.Errorf("intent verdict names unknown intent %q", verdict.Intent)
	}
	if verdict.Confidence == nil {
		return stageResult{}, errors.New("intent verdict is missing confidence")
	}
	confidence := *verdict.Confidence
	switch {
	case confidence < 0:
		confidence = 0
	case confidence > 1:
		confidence = 1
	}
	entities, _ := normalizeValue(verdict.Entities).(map[string]any)
	if entities == nil {
		entities = map[string]any{}
	}
	return stageResult{
		intent:     name,
		confidence: confidence,
		entities:   entities,
		reasoning:  verdict.Reasoning,
	}, nil
}

// merge combines both stages. The LLM verdict always names the intent; a
// degraded LLM stage contributes Other with zero confidence.
func merge(rule, verdict stageResult) stageResult {
	out := stageResult{intent: verdict.intent, confidence: rule.confidence, reasoning: verdict.reasoning}
	if verdict.confidence > out.confidence {
		out.confidence = verdict.confidence
	}
	out.entities = make(map[string]any, len(rule.entities)+len(verdict.entities))
	for k, v := range rule.entities {
		out.entities[k] = v
	}
	for k, v := range verdict.entities {
		out.entities[k] = v
	}
	return out
}

// normalizeValue turns json.Number into int when integral, float64 otherwise.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		if v == nil {
			return nil
		}
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
