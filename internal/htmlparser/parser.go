// Package htmlparser is the fallback path exercised when no structured-API
// provider recognises a company's career page: it scrapes job links and
// individual posting pages directly with goquery.
package htmlparser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/interfaces"
	"github.com/ternarybob/quaero/internal/models"
)

// jobLinkPattern matches href fragments that plausibly point at a single job
// posting rather than a listing, footer, or navigation link.
var jobLinkPattern = regexp.MustCompile(`(?i)/(jobs?|careers?|positions?|openings?|postings?)/[^/?#]+`)

var excludedExtensions = regexp.MustCompile(`(?i)\.(pdf|docx?|xlsx?|pptx?|zip|png|jpe?g|gif|svg)$`)

// providerHintPattern matches a structured-API vendor's hostname embedded
// anywhere in a custom-domain career page: an iframe/script src pulling in
// Greenhouse's embed widget, a "powered by Lever" badge link, and so on.
var providerHintPattern = regexp.MustCompile(`(?i)(https?://[a-z0-9.-]*(?:greenhouse\.io|lever\.co|ashbyhq\.com|workable\.com)[^\s"'<>]*)`)

// ErrFiltered is returned by ParseJobPosting when a posting was scraped
// successfully but excluded by the configured JobFilter.
var ErrFiltered = errors.New("htmlparser: job excluded by filter")

// Parser implements interfaces.HTMLParser over goquery document trees.
// fetcher is expected to be a rate-gated handle (internal/session.Session)
// so every listing-page and job-posting request is paced identically.
type Parser struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
	filter  *interfaces.JobFilter
}

// New wires an HTML parser against a (normally rate-gated) fetcher. filter
// may be nil, in which case every scraped posting is kept.
func New(fetcher interfaces.Fetcher, logger arbor.ILogger, filter *interfaces.JobFilter) *Parser {
	return &Parser{fetcher: fetcher, logger: logger, filter: filter}
}

// GetJobLinks fetches careerURL and returns every link that looks like an
// individual job posting, deduplicated and resolved to absolute URLs.
func (p *Parser) GetJobLinks(ctx context.Context, careerURL string) ([]string, error) {
	body, err := p.fetcher.Get(ctx, careerURL, nil, nil, p.logger)
	if err != nil {
		return nil, fmt.Errorf("htmlparser: fetch %s: %w", careerURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("htmlparser: parse %s: %w", careerURL, err)
	}

	base, err := url.Parse(careerURL)
	if err != nil {
		return nil, fmt.Errorf("htmlparser: invalid base url %s: %w", careerURL, err)
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists || href == "" {
			return
		}
		if strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}

		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		absolute := base.ResolveReference(parsed)
		absolute.Fragment = ""
		normalized := absolute.String()

		if excludedExtensions.MatchString(normalized) {
			return
		}
		if !jobLinkPattern.MatchString(absolute.Path) {
			return
		}
		if seen[normalized] {
			return
		}
		seen[normalized] = true
		links = append(links, normalized)
	})

	if len(links) == 0 {
		p.logger.Warn().Str("url", careerURL).Msg("No job links discovered on career page")
	}

	return links, nil
}

// ParseJobPosting fetches a single job posting page and extracts title,
// description, and location, preferring embedded JSON-LD JobPosting
// structured data and falling back to a set of common CSS selectors for
// whatever JSON-LD leaves empty. A posting excluded by the parser's
// JobFilter is returned alongside ErrFiltered.
func (p *Parser) ParseJobPosting(ctx context.Context, jobURL string) (*models.Job, error) {
	body, err := p.fetcher.Get(ctx, jobURL, nil, nil, p.logger)
	if err != nil {
		return nil, fmt.Errorf("htmlparser: fetch %s: %w", jobURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("htmlparser: parse %s: %w", jobURL, err)
	}

	job := jobPostingLD(doc)
	if job == nil {
		job = &models.Job{}
	}
	if job.Title == "" {
		job.Title = firstNonEmpty(doc, "h1", "[class*='job-title']", "[class*='posting-title']", "title")
	}
	if job.Description == "" {
		job.Description = strings.TrimSpace(doc.Find("[class*='description'], [class*='content'], article, main").First().Text())
	}
	if job.Location == "" {
		job.Location = firstNonEmpty(doc, "[class*='location']", "[class*='job-location']")
	}
	job.ApplyURL = jobURL
	job.ScrapedAt = time.Now()
	job.Active = true

	if job.Title == "" {
		return nil, fmt.Errorf("htmlparser: no title found on %s", jobURL)
	}

	if p.filter != nil && !p.filter.Matches(*job) {
		return job, ErrFiltered
	}

	return job, nil
}

// jsonLDJobPosting mirrors the schema.org JobPosting fields this parser
// understands; everything else in the blob is ignored.
type jsonLDJobPosting struct {
	Type            string `json:"@type"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	EmploymentType  string `json:"employmentType"`
	DatePosted      string `json:"datePosted"`
	HiringOrg       struct {
		Name string `json:"name"`
	} `json:"hiringOrganization"`
	JobLocation struct {
		Address struct {
			Locality string `json:"addressLocality"`
			Region   string `json:"addressRegion"`
		} `json:"address"`
	} `json:"jobLocation"`
}

// jobPostingLD scans every <script type="application/ld+json"> block for a
// schema.org JobPosting object and maps it onto a partial models.Job. A page
// may embed the JobPosting as a bare object or nested inside an @graph
// array; both shapes are tried. Returns nil when no JobPosting is found.
func jobPostingLD(doc *goquery.Document) *models.Job {
	var found *models.Job

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw := sel.Text()

		if ld := decodeJobPostingLD(raw); ld != nil {
			found = ld
			return false
		}

		var graph struct {
			Graph []json.RawMessage `json:"@graph"`
		}
		if err := json.Unmarshal([]byte(raw), &graph); err == nil {
			for _, node := range graph.Graph {
				if ld := decodeJobPostingLD(string(node)); ld != nil {
					found = ld
					return false
				}
			}
		}
		return true
	})

	return found
}

func decodeJobPostingLD(raw string) *models.Job {
	var ld jsonLDJobPosting
	if err := json.Unmarshal([]byte(raw), &ld); err != nil {
		return nil
	}
	if !strings.EqualFold(ld.Type, "JobPosting") {
		return nil
	}

	job := &models.Job{
		Title:          ld.Title,
		Description:    ld.Description,
		EmploymentType: ld.EmploymentType,
		Department:     ld.HiringOrg.Name,
	}
	if loc := strings.TrimSpace(strings.TrimSuffix(fmt.Sprintf("%s, %s", ld.JobLocation.Address.Locality, ld.JobLocation.Address.Region), ", ")); loc != "," && loc != "" {
		job.Location = strings.Trim(loc, ", ")
	}
	if t, err := time.Parse("2006-01-02", ld.DatePosted); err == nil {
		job.PostedAt = &t
	}
	return job
}

func firstNonEmpty(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

// DetectProviderHint scans careerURL's HTML for a structured-API vendor
// reference (an embed script, iframe, or "powered by" badge) so a custom
// domain backed by a recognised ATS can still be routed to its API rather
// than falling through to generic link scraping.
func (p *Parser) DetectProviderHint(ctx context.Context, careerURL string) (string, bool) {
	body, err := p.fetcher.Get(ctx, careerURL, nil, nil, p.logger)
	if err != nil {
		return "", false
	}

	if m := providerHintPattern.FindString(string(body)); m != "" {
		return m, true
	}
	return "", false
}

var _ interfaces.HTMLParser = (*Parser)(nil)
