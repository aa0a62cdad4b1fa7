package prompt

import (
	"fmt"
	"strings"

	"github.com/findable/query-runner/internal/models"
)

const maxFollowUps = 10

// FollowUps generates follow-up queries to probe a project's findability:
// direct product questions, keyword-based searches, and competitor
// alternatives. At most 10 queries are returned.
func FollowUps(project *models.ProjectContext) []string {
	if project == nil {
		return nil
	}

	followUps := []string{}

	if project.Name != "" && project.Name != "Unknown Project" {
		followUps = append(followUps,
			fmt.Sprintf("What is %s?", project.Name),
			fmt.Sprintf("How does %s work?", project.Name),
			fmt.Sprintf("Is %s worth it?", project.Name),
			fmt.Sprintf("%s vs alternatives", project.Name),
		)
	}

	keywords := project.Keywords
	if len(keywords) > 3 {
		keywords = keywords[:3]
	}
	for _, keyword := range keywords {
		followUps = append(followUps,
			fmt.Sprintf("Best %s tools", keyword),
			fmt.Sprintf("How to %s", keyword),
			fmt.Sprintf("%s software recommendations", keyword),
		)
	}

	competitors := project.Competitors
	if len(competitors) > 2 {
		competitors = competitors[:2]
	}
	for _, competitor := range competitors {
		followUps = append(followUps, competitor+" alternative")
	}

	if len(followUps) > maxFollowUps {
		followUps = followUps[:maxFollowUps]
	}
	return followUps
}

// RecommendationStrength grades how strongly a response pushes a product.
type RecommendationStrength string

// Recommendation strength grades, weakest to strongest.
const (
	StrengthNone     RecommendationStrength = "none"
	StrengthWeak     RecommendationStrength = "weak"
	StrengthModerate RecommendationStrength = "moderate"
	StrengthStrong   RecommendationStrength = "strong"
)

// ResponseAnalysis summarizes how a response treats the project.
type ResponseAnalysis struct {
	Query                  string                 `json:"query"`
	ResponseLength         int                    `json:"response_length"`
	MentionsProject        bool                   `json:"mentions_project"`
	MentionedKeywords      []string               `json:"mentions_keywords"`
	Sentiment              string                 `json:"sentiment"`
	RecommendationStrength RecommendationStrength `json:"recommendation_strength"`
}

var (
	positiveWords = []string{"excellent", "great", "best", "recommend", "perfect", "ideal"}
	negativeWords = []string{"poor", "bad", "avoid", "terrible", "worst", "problematic"}

	strongSignals   = []string{"highly recommend", "strongly suggest", "best choice"}
	moderateSignals = []string{"recommend", "suggest", "consider"}
	weakSignals     = []string{"might try", "could consider", "option"}
)

// AnalyzeResponse grades a response's treatment of the project: whether the
// project and its keywords appear, rough sentiment from positive/negative
// word counts, and how strong any recommendation language is. Pure text
// heuristics, suitable for downstream analytics.
func AnalyzeResponse(query, response string, project *models.ProjectContext) *ResponseAnalysis {
	lower := strings.ToLower(response)

	analysis := &ResponseAnalysis{
		Query:                  query,
		ResponseLength:         len(response),
		MentionedKeywords:      []string{},
		Sentiment:              "neutral",
		RecommendationStrength: StrengthNone,
	}

	if project != nil {
		if name := strings.ToLower(project.Name); name != "" {
			analysis.MentionsProject = strings.Contains(lower, name)
		}
		for _, keyword := range project.Keywords {
			if strings.Contains(lower, strings.ToLower(keyword)) {
				analysis.MentionedKeywords = append(analysis.MentionedKeywords, keyword)
			}
		}
	}

	positive := countContained(lower, positiveWords)
	negative := countContained(lower, negativeWords)
	if positive > negative {
		analysis.Sentiment = "positive"
	} else if negative > positive {
		analysis.Sentiment = "negative"
	}

	switch {
	case containsAny(lower, strongSignals):
		analysis.RecommendationStrength = StrengthStrong
	case containsAny(lower, moderateSignals):
		analysis.RecommendationStrength = StrengthModerate
	case containsAny(lower, weakSignals):
		analysis.RecommendationStrength = StrengthWeak
	}

	return analysis
}

func countContained(text string, words []string) int {
	count := 0
	for _, word := range words {
		if strings.Contains(text, word) {
			count++
		}
	}
	return count
}

func containsAny(text string, words []string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}
