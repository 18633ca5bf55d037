package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ClaudeClient wraps the Anthropic Messages API
type ClaudeClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	caller
}

func NewClaudeClient(apiKey, baseURL, model string) *ClaudeClient {
	return &ClaudeClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		caller: newCaller("claude"),
	}
}

func (c *ClaudeClient) Name() string { return "claude" }

// SetRequestsPerMinute paces outgoing calls; zero disables pacing
func (c *ClaudeClient) SetRequestsPerMinute(n int) { c.setRequestsPerMinute(n) }

// ── Anthropic API request/response types ──────────────

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (c *ClaudeClient) Complete(ctx context.Context, p Prompt) (string, error) {
	return c.do(ctx, func(ctx context.Context) (string, error) {
		return c.complete(ctx, p)
	})
}

func (c *ClaudeClient) complete(ctx context.Context, p Prompt) (string, error) {
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1500
	}

	jsonBody, err := json.Marshal(claudeRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    p.System,
		Messages:  []claudeMessage{{Role: "user", Content: p.User}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Provider: "Claude", Code: resp.StatusCode, Body: truncate(string(body), 500)}
	}

	var claudeResp claudeResponse
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return "", fmt.Errorf("parsing Claude response: %w", err)
	}

	var sb strings.Builder
	for _, block := range claudeResp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
