// Package market supplies per-query market-context snapshots used to enrich
// prompts. Context is a best-effort annotation: callers treat any failure as
// absence, never as a fatal error.
package market

import (
	"context"

	"github.com/findable/query-runner/internal/models"
)

// Provider analyzes the search landscape for one query. A nil context with a
// nil error means "no context available".
type Provider interface {
	Analyze(ctx context.Context, query string, project *models.ProjectContext) (*models.MarketContext, error)
}

// NopProvider always reports absence. Used when market analysis is disabled.
type NopProvider struct{}

// Analyze returns no market context.
func (NopProvider) Analyze(context.Context, string, *models.ProjectContext) (*models.MarketContext, error) {
	return nil, nil
}
