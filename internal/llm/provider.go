package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider is a hosted text-completion service. Implementations must return a
// *ProviderError for every failure so callers can fall back uniformly.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

type Variant string

const (
	VariantDeepSeek Variant = "deepseek"
	VariantOpenAI   Variant = "openai"
)

type FailureKind string

const (
	FailureUnauthorized FailureKind = "unauthorized"
	FailureRateLimited  FailureKind = "rate_limited"
	FailureTimeout      FailureKind = "timeout"
	FailureTransport    FailureKind = "transport"
	FailureMalformed    FailureKind = "malformed"
)

type ProviderError struct {
	Provider   string
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("llm provider %s: %s", e.Provider, e.Kind)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a *ProviderError of the given kind.
func IsKind(err error, kind FailureKind) bool {
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		return false
	}
	return providerErr.Kind == kind
}

type Config struct {
	Variant      Variant
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration

	// RateLimit is requests per second; zero disables client-side limiting.
	RateLimit float64
	RateBurst int
}

// New resolves the configured variant once at startup.
func New(cfg Config) (Provider, error) {
	switch Variant(strings.ToLower(string(cfg.Variant))) {
	case VariantDeepSeek:
		return NewDeepSeek(cfg)
	case VariantOpenAI:
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Variant)
	}
}

// Disabled is used when no API key is configured. Every call fails as
// unauthorized, which sends callers down their fallback paths.
type Disabled struct {
	Variant Variant
}

func (d Disabled) Name() string {
	if d.Variant == "" {
		return "disabled"
	}
	return string(d.Variant)
}

func (d Disabled) Complete(context.Context, string) (string, error) {
	return "", &ProviderError{
		Provider: d.Name(),
		Kind:     FailureUnauthorized,
		Err:      errors.New("api key is not configured"),
	}
}

// StripCodeFence removes a surrounding markdown code fence, including an
// optional language tag such as ```sql or ```json.
func StripCodeFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		tag := strings.TrimSpace(trimmed[:newline])
		if tag == "" || !strings.ContainsAny(tag, " \t") {
			trimmed = trimmed[newline+1:]
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
