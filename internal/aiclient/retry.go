package aiclient

import (
	"context"
	"time"

	"github.com/findable/query-runner/internal/config"
	"github.com/findable/query-runner/internal/logger"
)

// RetryPolicy is an explicit, inspectable retry policy injected into each
// model client: exponential backoff from BaseDelay by Multiplier, capped at
// MaxDelay, up to MaxAttempts total attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// PolicyFromConfig converts a config retry block into a policy.
func PolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		Multiplier:  cfg.Multiplier,
		MaxDelay:    cfg.MaxDelay,
	}
}

// Delay returns the backoff before retry number attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// withRetry runs fn up to the policy's attempt ceiling, backing off between
// attempts. Terminal errors and context cancellation stop retrying early.
func withRetry(ctx context.Context, policy RetryPolicy, log logger.Logger, model string, fn func() (string, error)) (string, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := fn()
		if err == nil {
			return text, nil
		}
		lastErr = err

		if IsTerminal(err) {
			return "", err
		}
		if attempt == attempts {
			break
		}

		delay := policy.Delay(attempt)
		log.Warn("model call failed, retrying",
			logger.String("model", model),
			logger.Int("attempt", attempt),
			logger.Duration("backoff", delay),
			logger.Error(err),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "", lastErr
}
