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

var ashbyURLPattern = regexp.MustCompile(`(?i)jobs\.ashbyhq\.com/([a-z0-9_-]+)`)

// Ashby talks to the public Ashby job board API.
type Ashby struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

// NewAshby wires an Ashby provider against the shared fetcher.
func NewAshby(fetcher interfaces.Fetcher, logger arbor.ILogger) *Ashby {
	return &Ashby{fetcher: fetcher, logger: logger}
}

func (a *Ashby) Name() string { return "ashby" }

func (a *Ashby) MatchURL(url string) bool {
	return ashbyURLPattern.MatchString(url)
}

func (a *Ashby) ExtractSlug(url string) (string, bool) {
	m := ashbyURLPattern.FindStringSubmatch(url)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

type ashbyResponse struct {
	Jobs []ashbyJob `json:"jobs"`
}

type ashbyJob struct {
	Title            string `json:"title"`
	DescriptionPlain string `json:"descriptionHtml"`
	Location         string `json:"location"`
	Department       string `json:"department"`
	EmploymentType   string `json:"employmentType"`
	JobURL           string `json:"jobUrl"`
	ApplicationURL   string `json:"applicationUrl"`
	PublishedAt      string `json:"publishedDate"`
}

func (a *Ashby) FetchJobs(ctx context.Context, slug string) ([]models.Job, error) {
	url := fmt.Sprintf("https://api.ashbyhq.com/posting-api/job-board/%s", slug)
	body, err := a.fetcher.Get(ctx, url, nil, nil, a.logger)
	if err != nil {
		return nil, fmt.Errorf("ashby: fetch %s: %w", slug, err)
	}

	var parsed ashbyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("ashby: decode %s: %w", slug, err)
	}

	out := make([]models.Job, 0, len(parsed.Jobs))
	for _, j := range parsed.Jobs {
		job := models.Job{
			Title:          j.Title,
			Description:    j.DescriptionPlain,
			Location:       j.Location,
			Department:     j.Department,
			EmploymentType: j.EmploymentType,
			ApplyURL:       firstNonEmpty(j.ApplicationURL, j.JobURL),
			ScrapedAt:      time.Now(),
			Active:         true,
		}
		if t, err := time.Parse(time.RFC3339, j.PublishedAt); err == nil {
			job.PostedAt = &t
		}
		out = append(out, job)
	}
	return out, nil
}

var _ interfaces.Provider = (*Ashby)(nil)
