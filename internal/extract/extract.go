// Package extract pulls structured signals out of free-text model responses:
// citations, brand mentions, and supporting snippets. Every function is a
// deterministic best-effort heuristic over immutable text; malformed input
// degrades to empty results, never to an error.
package extract

import (
	"fmt"
	"strings"
)

const maxSnippets = 10

// Result bundles the signals extracted from one response.
type Result struct {
	Citations []string `json:"citations"`
	Mentions  []string `json:"mentions"`
	Snippets  []string `json:"snippets"`
	WordCount int      `json:"word_count"`
	CharCount int      `json:"character_count"`

	// Err is set when extraction panicked on pathological input. The
	// structured fields are then empty but valid.
	Err string `json:"error,omitempty"`
}

// Parse extracts all signals from a response. It is total: a panic anywhere
// inside the heuristics is recovered into an empty Result with Err set, so
// one bad model response never aborts the surrounding attempt.
func Parse(text string) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			result = &Result{
				Citations: []string{},
				Mentions:  []string{},
				Snippets:  []string{},
				Err:       fmt.Sprintf("extraction failed: %v", r),
			}
		}
	}()

	mentions := Mentions(text)
	result = &Result{
		Citations: Citations(text),
		Mentions:  mentions,
		Snippets:  Snippets(text, mentions),
		WordCount: len(strings.Fields(text)),
		CharCount: len(text),
	}
	return result
}

// Snippets returns sentence-like segments that contain at least one mention
// (case-insensitive) and are at least 20 characters long, de-duplicated in
// first-encountered order and capped at 10.
func Snippets(text string, mentions []string) []string {
	segments := splitSentences(text)

	snippets := make([]string, 0, maxSnippets)
	seen := make(map[string]struct{})

	for _, mention := range mentions {
		lower := strings.ToLower(mention)
		for _, segment := range segments {
			trimmed := strings.TrimSpace(segment)
			if len(trimmed) < 20 {
				continue
			}
			if !strings.Contains(strings.ToLower(trimmed), lower) {
				continue
			}
			if _, ok := seen[trimmed]; ok {
				continue
			}
			seen[trimmed] = struct{}{}
			snippets = append(snippets, trimmed)
			if len(snippets) == maxSnippets {
				return snippets
			}
		}
	}

	return snippets
}

// splitSentences splits text into sentence-like segments on . ! ? runs.
func splitSentences(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
}

// dedupe collapses duplicates while preserving first-encountered order.
func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
