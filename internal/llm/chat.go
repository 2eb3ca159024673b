package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/duckmesh/mesquery/internal/observability"
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 1000
	defaultTimeout     = 30 * time.Second
	maxErrorBodyBytes  = 512
)

// ChatProvider talks to an OpenAI-compatible chat completions endpoint.
// DeepSeek and OpenAI differ only in their defaults.
type ChatProvider struct {
	name         string
	endpoint     string
	apiKey       string
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int
	client       *http.Client
	limiter      *rate.Limiter
}

func NewDeepSeek(cfg Config) (*ChatProvider, error) {
	return newChatProvider(VariantDeepSeek, "https://api.deepseek.com", "deepseek-chat", cfg)
}

func NewOpenAI(cfg Config) (*ChatProvider, error) {
	return newChatProvider(VariantOpenAI, "https://api.openai.com/v1", "gpt-4o-mini", cfg)
}

func newChatProvider(variant Variant, baseURL, model string, cfg Config) (*ChatProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%s api key is required", variant)
	}
	if value := strings.TrimSpace(cfg.BaseURL); value != "" {
		baseURL = value
	}
	if value := strings.TrimSpace(cfg.Model); value != "" {
		model = value
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &ChatProvider{
		name:         string(variant),
		endpoint:     strings.TrimRight(baseURL, "/") + "/chat/completions",
		apiKey:       apiKey,
		model:        model,
		systemPrompt: strings.TrimSpace(cfg.SystemPrompt),
		temperature:  temperature,
		maxTokens:    maxTokens,
		client:       &http.Client{Timeout: timeout},
		limiter:      limiter,
	}, nil
}

func (p *ChatProvider) Name() string {
	return p.name
}

func (p *ChatProvider) Model() string {
	return p.model
}

func (p *ChatProvider) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	content, err := p.complete(ctx, prompt)
	outcome := "success"
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		outcome = string(providerErr.Kind)
	}
	observability.ObserveLLMRequest(p.name, outcome, time.Since(start))
	return content, err
}

func (p *ChatProvider) complete(ctx context.Context, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", p.fail(FailureRateLimited, 0, fmt.Errorf("wait for rate limiter: %w", err))
	}

	messages := make([]chatMessage, 0, 2)
	if p.systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: p.systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})
	body, err := json.Marshal(chatRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	})
	if err != nil {
		return "", p.fail(FailureMalformed, 0, fmt.Errorf("marshal chat payload: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", p.fail(FailureTransport, 0, fmt.Errorf("build chat request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", p.fail(FailureTimeout, 0, fmt.Errorf("request chat completion: %w", err))
		}
		return "", p.fail(FailureTransport, 0, fmt.Errorf("request chat completion: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", p.fail(FailureTimeout, resp.StatusCode, fmt.Errorf("read chat response body: %w", err))
		}
		return "", p.fail(FailureTransport, resp.StatusCode, fmt.Errorf("read chat response body: %w", err))
	}
	if resp.StatusCode >= 400 {
		return "", p.fail(kindForStatus(resp.StatusCode), resp.StatusCode,
			fmt.Errorf("chat completion failed body=%s", truncate(string(rawRespBody), maxErrorBodyBytes)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", p.fail(FailureMalformed, resp.StatusCode, fmt.Errorf("decode chat completion response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", p.fail(FailureMalformed, resp.StatusCode, errors.New("empty chat completion choices"))
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", p.fail(FailureMalformed, resp.StatusCode, errors.New("empty chat completion content"))
	}
	return content, nil
}

func (p *ChatProvider) fail(kind FailureKind, status int, err error) error {
	return &ProviderError{Provider: p.name, Kind: kind, StatusCode: status, Err: err}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func kindForStatus(status int) FailureKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return FailureUnauthorized
	case http.StatusTooManyRequests:
		return FailureRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return FailureTimeout
	default:
		return FailureTransport
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
