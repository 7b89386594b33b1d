package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/interfaces"
	"github.com/ternarybob/quaero/internal/models"
)

var leverURLPattern = regexp.MustCompile(`(?i)jobs\.lever\.co/([a-z0-9_-]+)`)

// Lever talks to the public Lever postings API.
type Lever struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

// NewLever wires a Lever provider against the shared fetcher.
func NewLever(fetcher interfaces.Fetcher, logger arbor.ILogger) *Lever {
	return &Lever{fetcher: fetcher, logger: logger}
}

func (l *Lever) Name() string { return "lever" }

func (l *Lever) MatchURL(url string) bool {
	return leverURLPattern.MatchString(url)
}

func (l *Lever) ExtractSlug(url string) (string, bool) {
	m := leverURLPattern.FindStringSubmatch(url)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

type leverPosting struct {
	Text       string `json:"text"`
	HostedURL  string `json:"hostedUrl"`
	ApplyURL   string `json:"applyUrl"`
	CreatedAt  int64  `json:"createdAt"`
	Categories struct {
		Location   string `json:"location"`
		Department string `json:"department"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	DescriptionPlain string `json:"descriptionPlain"`
}

func (l *Lever) FetchJobs(ctx context.Context, slug string) ([]models.Job, error) {
	url := fmt.Sprintf("https://api.lever.co/v0/postings/%s?mode=json", slug)
	body, err := l.fetcher.Get(ctx, url, nil, nil, l.logger)
	if err != nil {
		return nil, fmt.Errorf("lever: fetch %s: %w", slug, err)
	}

	var postings []leverPosting
	if err := json.Unmarshal(body, &postings); err != nil {
		return nil, fmt.Errorf("lever: decode %s: %w", slug, err)
	}

	out := make([]models.Job, 0, len(postings))
	for _, p := range postings {
		job := models.Job{
			Title:          p.Text,
			Description:    p.DescriptionPlain,
			Location:       p.Categories.Location,
			Department:     p.Categories.Department,
			EmploymentType: p.Categories.Commitment,
			ApplyURL:       firstNonEmpty(p.ApplyURL, p.HostedURL),
			ScrapedAt:      time.Now(),
			Active:         true,
		}
		if p.CreatedAt > 0 {
			t := time.UnixMilli(p.CreatedAt)
			job.PostedAt = &t
		}
		out = append(out, job)
	}
	return out, nil
}

var _ interfaces.Provider = (*Lever)(nil)
