package extract

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

	// Numbered reference markers and labeled source lines.
	bracketRefPattern = regexp.MustCompile(`\[(\d+)\]`)
	parenRefPattern   = regexp.MustCompile(`\((\d+)\)`)
	sourceLinePattern = regexp.MustCompile(`(?im)^\s*(?:Source|Reference):\s*(.+?)\s*$`)
)

// trailingPunct is stripped from the end of matched URLs.
const trailingPunct = ".,!?;)"

// Citations extracts the union of well-formed absolute URLs and numbered or
// labeled reference markers from a response. Duplicates collapse to one
// entry; order follows first encounter.
func Citations(text string) []string {
	citations := []string{}

	for _, raw := range urlPattern.FindAllString(text, -1) {
		cleaned := strings.TrimRight(raw, trailingPunct)
		parsed, err := url.Parse(cleaned)
		if err != nil || parsed.Host == "" {
			continue
		}
		citations = append(citations, cleaned)
	}

	for _, pattern := range []*regexp.Regexp{bracketRefPattern, parenRefPattern, sourceLinePattern} {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			citations = append(citations, match[1])
		}
	}

	return dedupe(citations)
}
