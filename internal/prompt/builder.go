// Package prompt assembles enriched prompts for AI model queries. Assembly
// is a pure function of its inputs: identical inputs always produce
// byte-identical output.
package prompt

import (
	"fmt"
	"strings"

	"github.com/findable/query-runner/internal/models"
)

// Variant selects the instructional framing of a prompt.
type Variant string

// Known prompt variants. Unknown variants fall back to VariantFindability.
const (
	VariantFindability    Variant = "findability"
	VariantRecommendation Variant = "recommendation"
	VariantComparison     Variant = "comparison"
)

const (
	maxContextCompetitors = 3
	maxContextDomains     = 3
	maxLandscapeEntries   = 5
	maxKeywords           = 5
)

var preambles = map[Variant]string{
	VariantFindability: `You are an AI assistant helping analyze product findability in search results.
Your goal is to provide accurate, helpful responses about products and services while being aware of market context and competition.`,

	VariantRecommendation: `You are an AI assistant helping users find the best tools and services for their needs.
Provide balanced, informative recommendations based on actual product capabilities and user requirements.`,

	VariantComparison: `You are an AI assistant helping users compare different products and services.
Provide objective comparisons highlighting the strengths and use cases of different options.`,
}

// Builder composes prompts from query, project, and market inputs.
type Builder struct{}

// NewBuilder creates a prompt builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build composes the prompt for one query. Sections appear in a fixed order
// (preamble, market context, product information, user query, response
// guidelines) and each is included only when its source data is non-empty.
func (b *Builder) Build(query string, project *models.ProjectContext, market *models.MarketContext, variant Variant) string {
	if _, known := preambles[variant]; !known {
		variant = VariantFindability
	}

	parts := []string{preambles[variant]}

	if section := marketSection(market); section != "" {
		parts = append(parts, "MARKET CONTEXT:\n"+section)
	}
	if section := projectSection(project); section != "" {
		parts = append(parts, "PRODUCT INFORMATION:\n"+section)
	}

	parts = append(parts, "USER QUERY: "+query)
	parts = append(parts, guidelines(variant))

	return strings.Join(parts, "\n\n")
}

// BuildCompetitive composes a competitive-analysis prompt: the comparison
// preamble, the competitive landscape (top 5 competitors), market context,
// the focus product, the query, and competitive guidelines.
func (b *Builder) BuildCompetitive(query string, project *models.ProjectContext, market *models.MarketContext) string {
	parts := []string{preambles[VariantComparison]}

	if project != nil && len(project.Competitors) > 0 {
		competitors := project.Competitors
		if len(competitors) > maxLandscapeEntries {
			competitors = competitors[:maxLandscapeEntries]
		}
		parts = append(parts, "COMPETITIVE LANDSCAPE:\nMain alternatives in this space include: "+strings.Join(competitors, ", "))
	}

	if section := marketSection(market); section != "" {
		parts = append(parts, "MARKET CONTEXT:\n"+section)
	}
	if section := projectSection(project); section != "" {
		parts = append(parts, "FOCUS PRODUCT:\n"+section)
	}

	parts = append(parts, "USER QUERY: "+query)
	parts = append(parts, competitiveGuidelines)

	return strings.Join(parts, "\n\n")
}

// marketSection renders the market-context lines: top result domains,
// frequently-mentioned competitors, and the presence ratio when observable.
func marketSection(market *models.MarketContext) string {
	if market == nil {
		return ""
	}

	lines := []string{}

	if len(market.TopDomains) > 0 {
		top := market.TopDomains
		if len(top) > maxContextDomains {
			top = top[:maxContextDomains]
		}
		domains := make([]string, 0, len(top))
		for _, dc := range top {
			domains = append(domains, dc.Domain)
		}
		lines = append(lines, "Leading domains in search results: "+strings.Join(domains, ", "))
	}

	if len(market.CompetitorOrder()) > 0 {
		competitors := market.CompetitorOrder()
		if len(competitors) > maxContextCompetitors {
			competitors = competitors[:maxContextCompetitors]
		}
		lines = append(lines, "Competitors frequently mentioned: "+strings.Join(competitors, ", "))
	}

	if market.TotalResults > 0 {
		pct := float64(market.ProjectPresence) / float64(market.TotalResults) * 100
		lines = append(lines, fmt.Sprintf("Current market presence: %d/%d results (%.1f%%)",
			market.ProjectPresence, market.TotalResults, pct))
	}

	return strings.Join(lines, "\n")
}

// projectSection renders the product-information lines; each sub-field is
// included only if present.
func projectSection(project *models.ProjectContext) string {
	if project == nil {
		return ""
	}

	lines := []string{}

	if project.Name != "" {
		lines = append(lines, "Product: "+project.Name)
	}
	if project.OneLiner != "" {
		lines = append(lines, "Description: "+project.OneLiner)
	}
	if project.Domain != "" {
		lines = append(lines, "Website: "+project.Domain)
	}
	if len(project.Keywords) > 0 {
		keywords := project.Keywords
		if len(keywords) > maxKeywords {
			keywords = keywords[:maxKeywords]
		}
		lines = append(lines, "Key features: "+strings.Join(keywords, ", "))
	}

	return strings.Join(lines, "\n")
}
