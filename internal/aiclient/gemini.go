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

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiClient queries Google Gemini models via the generateContent API.
type GeminiClient struct {
	model      string
	apiKey     string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
	retry      RetryPolicy
	logger     logger.Logger
}

// GeminiOptions configures a Gemini client.
type GeminiOptions struct {
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
	Retry     RetryPolicy
}

// NewGeminiClient creates a client for the Gemini generateContent API.
func NewGeminiClient(opts GeminiOptions, log logger.Logger) *GeminiClient {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultGeminiBaseURL
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &GeminiClient{
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
func (c *GeminiClient) Name() string { return c.model }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Query executes a prompt against generateContent, retrying transient
// failures per the injected policy.
func (c *GeminiClient) Query(ctx context.Context, prompt string, temperature float64) (string, error) {
	return withRetry(ctx, c.retry, c.logger, c.model, func() (string, error) {
		return c.doQuery(ctx, prompt, temperature)
	})
}

func (c *GeminiClient) doQuery(ctx context.Context, prompt string, temperature float64) (string, error) {
	request := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
	}
	request.GenerationConfig.Temperature = temperature
	request.GenerationConfig.MaxOutputTokens = c.maxTokens

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{
			Provider:   "gemini",
			StatusCode: resp.StatusCode,
			Message:    readErrorBody(resp.Body),
		}
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &ResponseError{Provider: "gemini", Reason: "malformed JSON body"}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &ResponseError{Provider: "gemini", Reason: "no candidates in response"}
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
