package providers

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/interfaces"
)

// Router matches a company's career URL against every known structured-API
// provider, in registration order, before the caller falls back to HTML.
type Router struct {
	providers []interfaces.Provider
}

// NewRouter wires the full structured-API provider set against fetcher.
func NewRouter(fetcher interfaces.Fetcher, logger arbor.ILogger) *Router {
	return &Router{
		providers: []interfaces.Provider{
			NewGreenhouse(fetcher, logger),
			NewLever(fetcher, logger),
			NewAshby(fetcher, logger),
			NewWorkable(fetcher, logger),
		},
	}
}

// Match returns the first provider whose MatchURL recognises careerURL, and
// the slug it extracted, or ok=false when no provider recognises the URL.
func (r *Router) Match(careerURL string) (provider interfaces.Provider, slug string, ok bool) {
	for _, p := range r.providers {
		if !p.MatchURL(careerURL) {
			continue
		}
		s, extracted := p.ExtractSlug(careerURL)
		if !extracted {
			continue
		}
		return p, s, true
	}
	return nil, "", false
}

// Providers returns the registered provider set, in match-priority order.
func (r *Router) Providers() []interfaces.Provider {
	return r.providers
}

// firstNonEmpty returns the first non-empty string among candidates, or "".
// Several ATS response shapes carry two overlapping apply-url fields (a
// vendor-hosted listing page and a canonical external application link);
// this picks the more specific one when both are present.
func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
