package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/interfaces"
	"github.com/ternarybob/quaero/internal/models"
)

var greenhouseURLPattern = regexp.MustCompile(`(?i)(?:boards\.greenhouse\.io|job-boards\.greenhouse\.io)/([a-z0-9_-]+)`)

// Greenhouse talks to the public Greenhouse job board API.
type Greenhouse struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

// NewGreenhouse wires a Greenhouse provider against the shared fetcher.
func NewGreenhouse(fetcher interfaces.Fetcher, logger arbor.ILogger) *Greenhouse {
	return &Greenhouse{fetcher: fetcher, logger: logger}
}

func (g *Greenhouse) Name() string { return "greenhouse" }

func (g *Greenhouse) MatchURL(url string) bool {
	return greenhouseURLPattern.MatchString(url)
}

func (g *Greenhouse) ExtractSlug(url string) (string, bool) {
	m := greenhouseURLPattern.FindStringSubmatch(url)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

type greenhouseJob struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	AbsoluteURL string `json:"absolute_url"`
	UpdatedAt  string `json:"updated_at"`
	Location   struct {
		Name string `json:"name"`
	} `json:"location"`
	Departments []struct {
		Name string `json:"name"`
	} `json:"departments"`
}

func (g *Greenhouse) FetchJobs(ctx context.Context, slug string) ([]models.Job, error) {
	url := fmt.Sprintf("https://boards-api.greenhouse.io/v1/boards/%s/jobs?content=true", slug)
	body, err := g.fetcher.Get(ctx, url, nil, nil, g.logger)
	if err != nil {
		return nil, fmt.Errorf("greenhouse: fetch %s: %w", slug, err)
	}

	var parsed greenhouseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("greenhouse: decode %s: %w", slug, err)
	}

	out := make([]models.Job, 0, len(parsed.Jobs))
	for _, j := range parsed.Jobs {
		dept := ""
		if len(j.Departments) > 0 {
			dept = j.Departments[0].Name
		}
		job := models.Job{
			Title:       j.Title,
			Description: j.Content,
			Location:    strings.TrimSpace(j.Location.Name),
			Department:  dept,
			ApplyURL:    j.AbsoluteURL,
			ScrapedAt:   time.Now(),
			Active:      true,
		}
		if t, err := time.Parse(time.RFC3339, j.UpdatedAt); err == nil {
			job.PostedAt = &t
		}
		out = append(out, job)
	}
	return out, nil
}

var _ interfaces.Provider = (*Greenhouse)(nil)
