package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient uses the Google generative AI SDK
type GeminiClient struct {
	client    *genai.Client
	modelName string
	caller
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: client, modelName: model, caller: newCaller("gemini")}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) SetRequestsPerMinute(n int) { c.setRequestsPerMinute(n) }

// Close releases the underlying SDK connection
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

func (c *GeminiClient) Complete(ctx context.Context, p Prompt) (string, error) {
	return c.do(ctx, func(ctx context.Context) (string, error) {
		return c.complete(ctx, p)
	})
}

func (c *GeminiClient) complete(ctx context.Context, p Prompt) (string, error) {
	// GenerativeModel is a cheap handle; one per call keeps settings request-scoped
	model := c.client.GenerativeModel(c.modelName)
	if p.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(p.System)}}
	}
	if p.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(p.MaxTokens))
	}

	response, err := model.GenerateContent(ctx, genai.Text(p.User))
	if err != nil {
		return "", err
	}
	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("response part is not text")
	}
	return sb.String(), nil
}
