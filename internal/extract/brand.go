package extract

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

var tldSuffix = regexp.MustCompile(`\.[a-z]+$`)

// BrandName reduces a domain or URL to a bare brand name: scheme stripped,
// leading "www." stripped, top-level suffix stripped, remainder capitalized.
// Input that cannot be reduced to a non-empty name (no host, no dot to strip)
// yields the empty string, not an error.
func BrandName(domain string) string {
	d := strings.TrimSpace(domain)
	if d == "" {
		return ""
	}

	if strings.HasPrefix(d, "http://") || strings.HasPrefix(d, "https://") {
		parsed, err := url.Parse(d)
		if err != nil || parsed.Host == "" {
			return ""
		}
		d = parsed.Host
	}

	d = strings.ToLower(d)
	d = strings.TrimPrefix(d, "www.")

	stripped := tldSuffix.ReplaceAllString(d, "")
	if stripped == d {
		// Nothing dot-like to strip; not a domain.
		return ""
	}
	d = stripped

	if d == "" || strings.ContainsFunc(d, unicode.IsSpace) {
		return ""
	}

	return capitalize(d)
}

// capitalize uppercases the first rune and lowercases the rest.
func capitalize(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	out := strings.ToUpper(string(runes[0]))
	if len(runes) > 1 {
		out += strings.ToLower(string(runes[1:]))
	}
	return out
}

// BrandMentions are the project- and competitor-specific mentions found in a
// response.
type BrandMentions struct {
	Project     []string `json:"project_mentions"`
	Competitors []string `json:"competitor_mentions"`
}

// Total returns the combined mention count.
func (b *BrandMentions) Total() int {
	return len(b.Project) + len(b.Competitors)
}

// ProjectMentions matches the project's brand name and each competitor's
// brand name against the response as whole words, case-insensitively.
// Malformed domains that yield no brand name produce no mention.
func ProjectMentions(text, projectDomain string, competitors []string) *BrandMentions {
	result := &BrandMentions{
		Project:     []string{},
		Competitors: []string{},
	}

	if name := BrandName(projectDomain); name != "" && wholeWordMatch(text, name) {
		result.Project = append(result.Project, name)
	}

	for _, competitor := range competitors {
		name := BrandName(competitor)
		if name != "" && wholeWordMatch(text, name) {
			result.Competitors = append(result.Competitors, name)
		}
	}

	result.Competitors = dedupe(result.Competitors)
	return result
}

func wholeWordMatch(text, name string) bool {
	pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	if err != nil {
		return false
	}
	return pattern.MatchString(text)
}
