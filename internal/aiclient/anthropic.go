package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/findable/query-runner/internal/logger"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

// AnthropicClient queries Anthropic Claude models via the Messages API.
type AnthropicClient struct {
	model      string
	apiKey     string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
	retry      RetryPolicy
	logger     logger.Logger
}

// AnthropicOptions configures an Anthropic client.
type AnthropicOptions struct {
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	Retry     RetryPolicy
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
func NewAnthropicClient(opts AnthropicOptions, log logger.Logger) *AnthropicClient {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultAnthropicBaseURL
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &AnthropicClient{
		model:      opts.Model,
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		maxTokens:  opts.MaxTokens,
		httpClient: &http.Client{Timeout: opts.Timeout},
		retry:      opts.Retry,
		logger:     log,
	}
}

// Name returns the model identifier this client serves.
func (c *AnthropicClient) Name() string { return c.model }

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Query executes a prompt against the Messages API, retrying transient
// failures per the injected policy.
func (c *AnthropicClient) Query(ctx context.Context, prompt string, temperature float64) (string, error) {
	return withRetry(ctx, c.retry, c.logger, c.model, func() (string, error) {
		return c.doQuery(ctx, prompt, temperature)
	})
}

func (c *AnthropicClient) doQuery(ctx context.Context, prompt string, temperature float64) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: temperature,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{
			Provider:   "anthropic",
			StatusCode: resp.StatusCode,
			Message:    readErrorBody(resp.Body),
		}
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &ResponseError{Provider: "anthropic", Reason: "malformed JSON body"}
	}
	if len(parsed.Content) == 0 {
		return "", &ResponseError{Provider: "anthropic", Reason: "no content blocks in response"}
	}

	return parsed.Content[0].Text, nil
}
