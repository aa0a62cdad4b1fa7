package aiclient

import (
	"fmt"
	"sort"
	"strings"

	"github.com/findable/query-runner/internal/config"
	"github.com/findable/query-runner/internal/logger"
)

const perplexityBaseURL = "https://api.perplexity.ai"

// Registry maps model identifiers to their clients. It is constructed once
// at startup from configuration and passed by reference into the scheduler
// and executor; there is no process-wide shared client map.
type Registry struct {
	clients      map[string]Client
	temperatures map[string]float64
}

// NewRegistry builds clients for every configured model. Models whose
// provider is unknown are rejected; missing API keys are allowed (the
// provider will reject calls) so that a worker can start with a partial
// credential set.
func NewRegistry(cfg *config.Config, log logger.Logger) (*Registry, error) {
	registry := &Registry{
		clients:      make(map[string]Client, len(cfg.Models)),
		temperatures: make(map[string]float64, len(cfg.Models)),
	}

	for i := range cfg.Models {
		mc := &cfg.Models[i]

		retry := PolicyFromConfig(cfg.Retry)
		if mc.Retry != nil {
			retry = PolicyFromConfig(*mc.Retry)
		}

		client, err := buildClient(mc, retry, log)
		if err != nil {
			return nil, err
		}

		if mc.APIKey() == "" {
			log.Warn("no API key configured for model",
				logger.String("model", mc.Name),
				logger.String("provider", mc.Provider),
			)
		}

		registry.clients[mc.Name] = client
		registry.temperatures[mc.Name] = mc.Temperature
	}

	return registry, nil
}

func buildClient(mc *config.ModelConfig, retry RetryPolicy, log logger.Logger) (Client, error) {
	switch strings.ToLower(mc.Provider) {
	case "openai":
		return NewOpenAIClient(OpenAIOptions{
			Model:     mc.Name,
			APIKey:    mc.APIKey(),
			BaseURL:   mc.BaseURL,
			MaxTokens: mc.MaxTokens,
			Timeout:   mc.Timeout,
			Retry:     retry,
		}, log), nil
	case "perplexity":
		baseURL := mc.BaseURL
		if baseURL == "" {
			baseURL = perplexityBaseURL
		}
		return NewOpenAIClient(OpenAIOptions{
			Model:     mc.Name,
			Provider:  "perplexity",
			APIKey:    mc.APIKey(),
			BaseURL:   baseURL,
			MaxTokens: mc.MaxTokens,
			Timeout:   mc.Timeout,
			Retry:     retry,
		}, log), nil
	case "anthropic":
		return NewAnthropicClient(AnthropicOptions{
			Model:     mc.Name,
			APIKey:    mc.APIKey(),
			BaseURL:   mc.BaseURL,
			MaxTokens: mc.MaxTokens,
			Timeout:   mc.Timeout,
			Retry:     retry,
		}, log), nil
	case "gemini":
		return NewGeminiClient(GeminiOptions{
			Model:     mc.Name,
			APIKey:    mc.APIKey(),
			BaseURL:   mc.BaseURL,
			MaxTokens: mc.MaxTokens,
			Timeout:   mc.Timeout,
			Retry:     retry,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown provider %q for model %q", mc.Provider, mc.Name)
	}
}

// Get returns the client for a model identifier, or false when the model is
// not configured.
func (r *Registry) Get(model string) (Client, bool) {
	client, ok := r.clients[model]
	return client, ok
}

// Temperature returns the configured sampling temperature for a model.
func (r *Registry) Temperature(model string) float64 {
	if t, ok := r.temperatures[model]; ok {
		return t
	}
	return config.DefaultTemperature
}

// Models returns the configured model identifiers, sorted.
func (r *Registry) Models() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
