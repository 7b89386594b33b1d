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

var workableURLPattern = regexp.MustCompile(`(?i)(?:apply\.workable\.com|[a-z0-9_-]+\.workable\.com)/([a-z0-9_-]+)`)

// Workable talks to the public Workable widget API.
type Workable struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

// NewWorkable wires a Workable provider against the shared fetcher.
func NewWorkable(fetcher interfaces.Fetcher, logger arbor.ILogger) *Workable {
	return &Workable{fetcher: fetcher, logger: logger}
}

func (w *Workable) Name() string { return "workable" }

func (w *Workable) MatchURL(url string) bool {
	return workableURLPattern.MatchString(url)
}

func (w *Workable) ExtractSlug(url string) (string, bool) {
	m := workableURLPattern.FindStringSubmatch(url)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

type workableResponse struct {
	Jobs []workableJob `json:"jobs"`
}

type workableJob struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    struct {
		City string `json:"city"`
	} `json:"location"`
	Department  string `json:"department"`
	Employment  string `json:"employment_type"`
	URL         string `json:"url"`
	CreatedAt   string `json:"created_at"`
}

func (w *Workable) FetchJobs(ctx context.Context, slug string) ([]models.Job, error) {
	url := fmt.Sprintf("https://apply.workable.com/api/v1/widget/accounts/%s", slug)
	body, err := w.fetcher.Get(ctx, url, nil, nil, w.logger)
	if err != nil {
		return nil, fmt.Errorf("workable: fetch %s: %w", slug, err)
	}

	var parsed workableResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("workable: decode %s: %w", slug, err)
	}

	out := make([]models.Job, 0, len(parsed.Jobs))
	for _, j := range parsed.Jobs {
		job := models.Job{
			Title:          j.Title,
			Description:    j.Description,
			Location:       j.Location.City,
			Department:     j.Department,
			EmploymentType: j.Employment,
			ApplyURL:       j.URL,
			ScrapedAt:      time.Now(),
			Active:         true,
		}
		if t, err := time.Parse(time.RFC3339, j.CreatedAt); err == nil {
			job.PostedAt = &t
		}
		out = append(out, job)
	}
	return out, nil
}

var _ interfaces.Provider = (*Workable)(nil)
