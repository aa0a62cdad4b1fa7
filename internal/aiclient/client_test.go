package aiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findable/query-runner/internal/config"
	"github.com/findable/query-runner/internal/logger"
)

func TestOpenAIClientQuery(t *testing.T) {
	var gotPath string
	var gotAuth string
	var gotReq chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello from gpt"}},
			},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIOptions{
		Model:   "gpt-4",
		APIKey:  "test-key",
		BaseURL: server.URL,
		Retry:   testPolicy(),
	}, logger.NewNopLogger())

	text, err := client.Query(context.Background(), "some prompt", 0.5)

	require.NoError(t, err)
	assert.Equal(t, "hello from gpt", text)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4", gotReq.Model)
	assert.InDelta(t, 0.5, gotReq.Temperature, 1e-9)
	assert.Equal(t, 2000, gotReq.MaxTokens)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "some prompt", gotReq.Messages[1].Content)
}

func TestOpenAIClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "recovered"}},
			},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIOptions{
		Model:   "gpt-4",
		BaseURL: server.URL,
		Retry:   testPolicy(),
	}, logger.NewNopLogger())

	text, err := client.Query(context.Background(), "p", 0.7)

	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAIClientTerminalErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid model", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIOptions{
		Model:   "gpt-4",
		BaseURL: server.URL,
		Retry:   testPolicy(),
	}, logger.NewNopLogger())

	_, err := client.Query(context.Background(), "p", 0.7)

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestOpenAIClientEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIOptions{
		Model:   "gpt-4",
		BaseURL: server.URL,
		Retry:   testPolicy(),
	}, logger.NewNopLogger())

	_, err := client.Query(context.Background(), "p", 0.7)

	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
}

func TestAnthropicClientQuery(t *testing.T) {
	var gotAPIKey, gotVersion, gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		gotPath = r.URL.Path

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": "hello from claude"}},
		})
	}))
	defer server.Close()

	client := NewAnthropicClient(AnthropicOptions{
		Model:   "claude-3-sonnet",
		APIKey:  "anthropic-key",
		BaseURL: server.URL,
		Retry:   testPolicy(),
	}, logger.NewNopLogger())

	text, err := client.Query(context.Background(), "p", 0.7)

	require.NoError(t, err)
	assert.Equal(t, "hello from claude", text)
	assert.Equal(t, "/v1/messages", gotPath)
	assert.Equal(t, "anthropic-key", gotAPIKey)
	assert.Equal(t, anthropicVersion, gotVersion)
}

func TestGeminiClientQuery(t *testing.T) {
	var gotPath, gotKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{
					"parts": []map[string]string{{"text": "hello from gemini"}},
				}},
			},
		})
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiOptions{
		Model:   "gemini-pro",
		APIKey:  "gemini-key",
		BaseURL: server.URL,
		Retry:   testPolicy(),
	}, logger.NewNopLogger())

	text, err := client.Query(context.Background(), "p", 0.7)

	require.NoError(t, err)
	assert.Equal(t, "hello from gemini", text)
	assert.Equal(t, "/v1beta/models/gemini-pro:generateContent", gotPath)
	assert.Equal(t, "gemini-key", gotKey)
}

func registryConfig() *config.Config {
	return &config.Config{
		Retry: config.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			Multiplier:  2,
			MaxDelay:    time.Millisecond,
		},
		Models: []config.ModelConfig{
			{Name: "gpt-4", Provider: "openai", Temperature: 0.4},
			{Name: "claude-3-sonnet", Provider: "anthropic", Temperature: 0.6},
			{Name: "gemini-pro", Provider: "gemini", Temperature: 0.7},
			{Name: "sonar", Provider: "perplexity", Temperature: 0.2},
		},
	}
}

func TestNewRegistry(t *testing.T) {
	registry, err := NewRegistry(registryConfig(), logger.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"claude-3-sonnet", "gemini-pro", "gpt-4", "sonar"}, registry.Models())

	client, ok := registry.Get("gpt-4")
	require.True(t, ok)
	assert.Equal(t, "gpt-4", client.Name())

	_, ok = registry.Get("unknown-model")
	assert.False(t, ok)
}

func TestNewRegistryUnknownProvider(t *testing.T) {
	cfg := registryConfig()
	cfg.Models = append(cfg.Models, config.ModelConfig{Name: "m", Provider: "mystery"})

	_, err := NewRegistry(cfg, logger.NewNopLogger())
	assert.Error(t, err)
}

func TestRegistryTemperature(t *testing.T) {
	registry, err := NewRegistry(registryConfig(), logger.NewNopLogger())
	require.NoError(t, err)

	assert.InDelta(t, 0.4, registry.Temperature("gpt-4"), 1e-9)
	assert.InDelta(t, config.DefaultTemperature, registry.Temperature("unknown"), 1e-9)
}
