package models

import "sort"

// DomainCount pairs a result domain with how often it appeared.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// MarketContext is a per-query snapshot of the search landscape, produced by
// the market-context provider. It is a best-effort annotation; absence must
// not block prompt construction or query execution.
type MarketContext struct {
	Query              string         `json:"query"`
	TotalResults       int            `json:"total_results"`
	ProjectPresence    int            `json:"project_presence"`
	CompetitorPresence map[string]int `json:"competitor_presence"`
	TopDomains         []DomainCount  `json:"top_domains"`
}

// CompetitorOrder returns competitor names ordered by presence count
// descending, ties broken alphabetically. Map iteration order is not stable,
// and prompt assembly needs deterministic input.
func (m *MarketContext) CompetitorOrder() []string {
	names := make([]string, 0, len(m.CompetitorPresence))
	for name := range m.CompetitorPresence {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := m.CompetitorPresence[names[i]], m.CompetitorPresence[names[j]]
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})
	return names
}
