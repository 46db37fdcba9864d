// Package static extracts units from server-rendered listing pages: a
// plain HTTP fetch followed by DOM selector heuristics. It also covers
// portfolio platforms that publish every building's units on one shared
// page, fetched once per run and filtered per building by fuzzy name match.
package static

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rentpulse/rentpulse/internal/scrape"
	"github.com/rentpulse/rentpulse/internal/strategy/dom"
)

// Single scrapes a building's own listing page.
type Single struct {
	fetcher scrape.PageFetcher
	logger  *zap.Logger
}

// NewSingle builds a single-page static strategy.
func NewSingle(fetcher scrape.PageFetcher, logger *zap.Logger) *Single {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Single{fetcher: fetcher, logger: logger}
}

// Extract fetches the building URL and parses unit cards out of the HTML.
func (s *Single) Extract(ctx context.Context, b scrape.Building) ([]scrape.RawUnit, error) {
	page, err := s.fetcher.FetchPage(ctx, b.URL)
	if err != nil {
		return nil, err
	}
	doc, err := dom.Parse(string(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", b.URL, err)
	}
	units := dom.UnitCards(doc)
	s.logger.Debug("static extraction",
		zap.String("building", b.Name),
		zap.Int("units", len(units)),
	)
	return units, nil
}
