package extract

import (
	"regexp"
	"strings"
)

// Lexical patterns that tend to precede or follow brand and product names.
// Trigger words match case-insensitively; the candidate phrase itself must be
// capitalized.
var mentionIndicators = []*regexp.Regexp{
	// "use Notion", "with Google Docs"
	regexp.MustCompile(`\b(?i:use|uses|using|with|via|through|from)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\b`),
	// "Notion is", "Google Docs can"
	regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s+(?i:is|was|are|were|can|could|will|would)\b`),
	// "try Notion", "recommend Grammarly"
	regexp.MustCompile(`\b(?i:try|consider|recommend|suggest)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\b`),
}

// Common SaaS/tech product shapes: suffix patterns and CamelCase tokens.
var techPatterns = []*regexp.Regexp{
	// Grammarly, Notion.io style suffixes, OpenAI, SomeAPI, SomeSDK
	regexp.MustCompile(`\b([A-Z][a-z]+(?:ly|io|app|AI|API|SDK))\b`),
	// CamelCase products: GitHub, YouTube
	regexp.MustCompile(`\b([A-Z][a-z]*[A-Z][a-z]*)\b`),
	// "Slack platform", "Figma tool"
	regexp.MustCompile(`\b([A-Z]+[a-z]*)\s+(?i:platform|service|tool|software|app)\b`),
}

var mentionPunct = regexp.MustCompile(`[^\w\s]`)

// Candidates matching the stop-list are never reported as mentions.
var stopList = map[string]struct{}{
	"The":   {},
	"This":  {},
	"That":  {},
	"These": {},
	"Those": {},
}

const (
	minMentionLen     = 2
	minTechMentionLen = 3
)

// Mentions extracts capitalized brand/product candidates from a response.
// Candidates shorter than two characters after punctuation-stripping, or on
// the stop-list, are discarded. The result is de-duplicated in
// first-encountered order.
func Mentions(text string) []string {
	mentions := []string{}

	for _, pattern := range mentionIndicators {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			cleaned := strings.TrimSpace(mentionPunct.ReplaceAllString(match[1], ""))
			if len(cleaned) < minMentionLen {
				continue
			}
			if _, stopped := stopList[cleaned]; stopped {
				continue
			}
			mentions = append(mentions, cleaned)
		}
	}

	for _, pattern := range techPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			if len(match[1]) < minTechMentionLen {
				continue
			}
			if _, stopped := stopList[match[1]]; stopped {
				continue
			}
			mentions = append(mentions, match[1])
		}
	}

	return dedupe(mentions)
}

// MergeMentions unions mention lists with case-insensitive de-duplication,
// preserving the casing and order of first encounter.
func MergeMentions(lists ...[]string) []string {
	merged := []string{}
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, mention := range list {
			key := strings.ToLower(mention)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, mention)
		}
	}
	return merged
}
