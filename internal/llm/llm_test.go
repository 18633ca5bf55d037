package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/applytrack-api/internal/config"
)

func TestClaudeClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req claudeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-test", req.Model)
		assert.Equal(t, "be brief", req.System)
		assert.Equal(t, 1500, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Content)

		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"hi "},{"type":"text","text":"there"}]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("test-key", srv.URL+"/", "claude-test")
	out, err := c.Complete(context.Background(), Prompt{System: "be brief", User: "hello"})

	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestClaudeClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("k", srv.URL, "m")
	c.delay = 0

	out, err := c.Complete(context.Background(), Prompt{User: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClaudeClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad"}`))
	}))
	defer srv.Close()

	c := NewClaudeClient("k", srv.URL, "m")
	c.delay = 0

	_, err := c.Complete(context.Background(), Prompt{User: "x"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClaudeClient_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	_, err := NewClaudeClient("k", srv.URL, "m").Complete(context.Background(), Prompt{User: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"done"}}]}`))
	}))
	defer srv.Close()

	out, err := NewOpenAIClient("sk-test", srv.URL, "gpt-test").
		Complete(context.Background(), Prompt{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}

func TestOpenAIClient_RateLimitedThenGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAIClient("k", srv.URL, "m")
	c.delay = 0

	_, err := c.Complete(context.Background(), Prompt{User: "u"})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDecodeJSON(t *testing.T) {
	type out struct {
		Score int `json:"score"`
	}

	tests := []struct {
		name    string
		in      string
		want    int
		wantErr bool
	}{
		{"plain", `{"score": 71}`, 71, false},
		{"fenced", "```json\n{\"score\": 42}\n```", 42, false},
		{"prose around object", "Here you go:\n{\"score\": 9}\nThanks!", 9, false},
		{"no object", "I cannot help with that", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v out
			err := DecodeJSON(tt.in, &v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Score)
		})
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "r", truncate("ré", 2))
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, &config.Config{})
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = NewProvider(ctx, &config.Config{OpenAIAPIKey: "sk", OpenAIBaseURL: "http://x", OpenAIModel: "m"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = NewProvider(ctx, &config.Config{ClaudeAPIKey: "a", OpenAIAPIKey: "b"})
	require.NoError(t, err)
	assert.Equal(t, "claude", p.Name())

	p, err = NewProvider(ctx, &config.Config{LLMProvider: "openai", ClaudeAPIKey: "a"})
	assert.Error(t, err)
	assert.Nil(t, p)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, isTransient(nil))
	assert.True(t, isTransient(&StatusError{Code: 429}))
	assert.True(t, isTransient(&StatusError{Code: 502}))
	assert.False(t, isTransient(&StatusError{Code: 401}))
	assert.True(t, isTransient(errors.New("googleapi: Error 500: internal")))
	assert.False(t, isTransient(errors.New("dial tcp: refused")))
}
