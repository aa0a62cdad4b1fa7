package models

import "github.com/lib/pq"

// ProjectContext is the immutable product snapshot used to enrich prompts
// and disambiguate project-vs-competitor mentions. Loaded once per session.
type ProjectContext struct {
	ID          string         `db:"id"          json:"id"`
	Name        string         `db:"name"        json:"name"`
	Slug        string         `db:"slug"        json:"slug"`
	Domain      string         `db:"domain"      json:"domain"`
	OneLiner    string         `db:"one_liner"   json:"one_liner"`
	Competitors pq.StringArray `db:"competitors" json:"competitors"`
	Keywords    pq.StringArray `db:"keywords"    json:"keywords"`
}

// DefaultProjectContext returns the placeholder context substituted when
// project data is missing, so a session never aborts solely for lack of it.
func DefaultProjectContext(projectID string) *ProjectContext {
	return &ProjectContext{
		ID:   projectID,
		Name: "Unknown Project",
	}
}
