package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/findable/query-runner/internal/logger"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultMaxTokens     = 2000
)

// OpenAIClient queries OpenAI chat models. It also serves OpenAI-compatible
// providers (Perplexity) via a different base URL.
type OpenAIClient struct {
	model      string
	provider   string
	apiKey     string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
	retry      RetryPolicy
	logger     logger.Logger
}

// OpenAIOptions configures an OpenAI-compatible client.
type OpenAIOptions struct {
	Model     string
	Provider  string // Label used in errors and logs; defaults to "openai"
	APIKey    string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	Retry     RetryPolicy
}

// NewOpenAIClient creates a client for an OpenAI-compatible chat endpoint.
func NewOpenAIClient(opts OpenAIOptions, log logger.Logger) *OpenAIClient {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultOpenAIBaseURL
	}
	if opts.Provider == "" {
		opts.Provider = "openai"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &OpenAIClient{
		model:      opts.Model,
		provider:   opts.Provider,
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		maxTokens:  opts.MaxTokens,
		httpClient: &http.Client{Timeout: opts.Timeout},
		retry:      opts.Retry,
		logger:     log,
	}
}

// Name returns the model identifier this client serves.
func (c *OpenAIClient) Name() string { return c.model }

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
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Query executes a prompt against the chat completions endpoint, retrying
// transient failures per the injected policy.
func (c *OpenAIClient) Query(ctx context.Context, prompt string, temperature float64) (string, error) {
	return withRetry(ctx, c.retry, c.logger, c.model, func() (string, error) {
		return c.doQuery(ctx, prompt, temperature)
	})
}

func (c *OpenAIClient) doQuery(ctx context.Context, prompt string, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    readErrorBody(resp.Body),
		}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &ResponseError{Provider: c.provider, Reason: "malformed JSON body"}
	}
	if len(parsed.Choices) == 0 {
		return "", &ResponseError{Provider: c.provider, Reason: "no choices in response"}
	}

	return parsed.Choices[0].Message.Content, nil
}

// readErrorBody reads a bounded prefix of an error response body.
func readErrorBody(r io.Reader) string {
	const maxErrorBody = 1 << 12
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return "unreadable error body"
	}
	return string(data)
}
