package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrandName(t *testing.T) {
	tests := []struct {
		name     string
		domain   string
		expected string
	}{
		{"bare domain", "acme.com", "Acme"},
		{"www prefix stripped", "www.acme.com", "Acme"},
		{"full URL with path", "https://www.Acme.io/path", "Acme"},
		{"http scheme", "http://notion.so", "Notion"},
		{"subdomain keeps inner label", "docs.acme.io", "Docs.acme"},
		{"uppercase input normalized", "GRAMMARLY.COM", "Grammarly"},
		{"no dot to strip", "bad input", ""},
		{"empty input", "", ""},
		{"whitespace only", "   ", ""},
		{"scheme without host", "https://", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BrandName(tt.domain))
		})
	}
}

func TestProjectMentions(t *testing.T) {
	text := "I recommend Notion over Coda for this workflow."

	result := ProjectMentions(text, "notion.so", []string{"coda.io", "airtable.com"})

	require.NotNil(t, result)
	assert.Equal(t, []string{"Notion"}, result.Project)
	assert.Equal(t, []string{"Coda"}, result.Competitors)
	assert.Equal(t, 2, result.Total())
}

func TestProjectMentionsCaseInsensitive(t *testing.T) {
	result := ProjectMentions("NOTION beats everything.", "notion.so", nil)
	assert.Equal(t, []string{"Notion"}, result.Project)
}

func TestProjectMentionsWholeWordOnly(t *testing.T) {
	// "Notions" must not count as a Notion mention.
	result := ProjectMentions("Many notions of productivity exist.", "notion.so", nil)
	assert.Empty(t, result.Project)
}

func TestProjectMentionsMalformedDomains(t *testing.T) {
	result := ProjectMentions("Anything at all.", "not a domain", []string{"also bad"})
	assert.Empty(t, result.Project)
	assert.Empty(t, result.Competitors)
	assert.Zero(t, result.Total())
}

func TestProjectMentionsDuplicateCompetitors(t *testing.T) {
	// Same brand behind two competitor entries collapses to one mention.
	result := ProjectMentions("Coda is popular.", "acme.com", []string{"coda.io", "www.coda.io"})
	assert.Equal(t, []string{"Coda"}, result.Competitors)
}
