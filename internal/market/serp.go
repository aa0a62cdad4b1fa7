package market

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/findable/query-runner/internal/extract"
	"github.com/findable/query-runner/internal/logger"
	"github.com/findable/query-runner/internal/models"
)

const (
	defaultSearchURL = "https://duckduckgo.com/html/"
	maxTopDomains    = 5

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// searchResult is one scraped search hit.
type searchResult struct {
	Title   string
	URL     string
	Snippet string
}

// SERPAnalyzer builds market context by scraping search results for a query
// and counting where the project and its competitors appear.
type SERPAnalyzer struct {
	searchURL  string
	maxResults int
	httpClient *http.Client
	logger     logger.Logger
}

// SERPOptions configures a SERPAnalyzer.
type SERPOptions struct {
	SearchURL  string // Defaults to the DuckDuckGo HTML endpoint
	MaxResults int
	Timeout    time.Duration
}

// NewSERPAnalyzer creates a search-results analyzer.
func NewSERPAnalyzer(opts SERPOptions, log logger.Logger) *SERPAnalyzer {
	if opts.SearchURL == "" {
		opts.SearchURL = defaultSearchURL
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 20
	}
	return &SERPAnalyzer{
		searchURL:  opts.SearchURL,
		maxResults: opts.MaxResults,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     log,
	}
}

// Analyze scrapes search results for the query and summarizes the landscape:
// top result domains, competitor presence counts, and the project's own
// presence out of the results observed.
func (a *SERPAnalyzer) Analyze(ctx context.Context, query string, project *models.ProjectContext) (*models.MarketContext, error) {
	results, err := a.search(ctx, query)
	if err != nil {
		return nil, err
	}

	mc := &models.MarketContext{
		Query:              query,
		TotalResults:       len(results),
		CompetitorPresence: map[string]int{},
	}
	if len(results) == 0 {
		return mc, nil
	}

	projectName := ""
	projectDomain := ""
	if project != nil {
		projectName = project.Name
		projectDomain = project.Domain
	}

	domains := map[string]int{}
	for _, result := range results {
		if mentionsEntity(result, projectName) || mentionsDomain(result, projectDomain) {
			mc.ProjectPresence++
		}
		if domain := hostOf(result.URL); domain != "" {
			domains[domain]++
		}
	}

	if project != nil {
		for _, competitor := range project.Competitors {
			name := extract.BrandName(competitor)
			if name == "" {
				name = competitor
			}
			count := 0
			for _, result := range results {
				if mentionsEntity(result, name) {
					count++
				}
			}
			if count > 0 {
				mc.CompetitorPresence[competitor] = count
			}
		}
	}

	mc.TopDomains = topDomains(domains, maxTopDomains)
	return mc, nil
}

// search fetches and parses one page of search results.
func (a *SERPAnalyzer) search(ctx context.Context, query string) ([]searchResult, error) {
	searchURL := a.searchURL + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	results := []searchResult{}
	doc.Find("div.result__body").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := sel.Find("a.result__a")
		snippet := sel.Find("a.result__snippet")
		if title.Length() == 0 || snippet.Length() == 0 {
			return true
		}

		href, _ := title.Attr("href")
		results = append(results, searchResult{
			Title:   strings.TrimSpace(title.Text()),
			URL:     href,
			Snippet: strings.TrimSpace(snippet.Text()),
		})
		return len(results) < a.maxResults
	})

	a.logger.Debug("scraped search results",
		logger.String("query", query),
		logger.Int("count", len(results)),
	)
	return results, nil
}

// mentionsEntity checks title and snippet for a case-insensitive mention.
func mentionsEntity(result searchResult, entity string) bool {
	if entity == "" {
		return false
	}
	text := strings.ToLower(result.Title + " " + result.Snippet)
	return strings.Contains(text, strings.ToLower(entity))
}

// mentionsDomain checks whether the result's own URL belongs to the domain.
func mentionsDomain(result searchResult, domain string) bool {
	if domain == "" {
		return false
	}
	host := hostOf(result.URL)
	target := hostOf(domain)
	if target == "" {
		target = strings.TrimPrefix(strings.ToLower(domain), "www.")
	}
	return host != "" && host == target
}

// hostOf extracts the lowercased host with any leading "www." removed.
func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
}

// topDomains returns the most frequent domains, ordered by count descending
// with ties broken alphabetically.
func topDomains(counts map[string]int, limit int) []models.DomainCount {
	out := make([]models.DomainCount, 0, len(counts))
	for domain, count := range counts {
		out = append(out, models.DomainCount{Domain: domain, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
