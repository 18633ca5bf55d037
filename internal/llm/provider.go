package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/yourusername/applytrack-api/internal/config"
	"github.com/yourusername/applytrack-api/internal/metrics"
)

// Prompt is one single-turn completion request
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

// Provider is a text-completion backend
type Provider interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

// ErrEmptyResponse is returned when a provider answers without any text
var ErrEmptyResponse = errors.New("empty response from model")

// StatusError is a non-200 answer from an HTTP provider
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.Code, e.Body)
}

// NewProvider picks the configured backend. LLM_PROVIDER wins; otherwise the
// first provider with a key is used. Returns nil when no key is configured.
func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	name := cfg.LLMProvider
	if name == "" {
		switch {
		case cfg.ClaudeAPIKey != "":
			name = "claude"
		case cfg.OpenAIAPIKey != "":
			name = "openai"
		case cfg.GeminiAPIKey != "":
			name = "gemini"
		default:
			return nil, nil
		}
	}

	var p Provider
	switch name {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			return nil, fmt.Errorf("LLM_PROVIDER=claude but CLAUDE_API_KEY is empty")
		}
		c := NewClaudeClient(cfg.ClaudeAPIKey, cfg.ClaudeBaseURL, cfg.ClaudeModel)
		c.SetRequestsPerMinute(cfg.LLMPerMinute)
		p = c
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("LLM_PROVIDER=openai but OPENAI_API_KEY is empty")
		}
		c := NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		c.SetRequestsPerMinute(cfg.LLMPerMinute)
		p = c
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("LLM_PROVIDER=gemini but GEMINI_API_KEY is empty")
		}
		c, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		c.SetRequestsPerMinute(cfg.LLMPerMinute)
		p = c
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", name)
	}
	return p, nil
}

// ── Shared call policy ─────────────────────────────────

// caller wraps each provider call with pacing, retries and metrics
type caller struct {
	provider string
	attempts int
	delay    time.Duration
	limiter  *rate.Limiter
}

func newCaller(provider string) caller {
	return caller{provider: provider, attempts: 3, delay: 2 * time.Second}
}

func (c *caller) setRequestsPerMinute(n int) {
	if n <= 0 {
		c.limiter = nil
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(float64(n)/60), 1)
}

func (c *caller) do(ctx context.Context, call func(ctx context.Context) (string, error)) (string, error) {
	var out string
	var err error

	_, _, _ = lo.AttemptWhileWithDelay(c.attempts, c.delay, func(i int, _ time.Duration) (error, bool) {
		if i > 0 {
			log.Warn().Str("provider", c.provider).Int("attempt", i+1).Err(err).Msg("Retrying LLM request")
		}
		if c.limiter != nil {
			if err = c.limiter.Wait(ctx); err != nil {
				return err, false
			}
		}
		out, err = call(ctx)
		return err, isTransient(err) && ctx.Err() == nil
	})

	metrics.LLMRequestsTotal.WithLabelValues(c.provider, metrics.Result(err)).Inc()
	return out, err
}

// isTransient reports rate limiting and server-side failures worth retrying
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	msg := err.Error()
	return strings.Contains(msg, "Error 429") || strings.Contains(msg, "Error 500") ||
		strings.Contains(msg, "Error 503")
}
