package static

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

// PortfolioRow is one unit row from a shared portfolio page, tagged with
// the building label the page printed next to it.
type PortfolioRow struct {
	BuildingName string
	Unit         scrape.RawUnit
}

// PageSource fetches and parses the shared portfolio page.
type PageSource func(ctx context.Context) ([]PortfolioRow, error)

// Portfolio scrapes platforms that list every building's units on one
// shared page. The page is fetched once and cached for the run; each
// building's Extract filters the cached rows by fuzzy name match.
type Portfolio struct {
	source PageSource
	logger *zap.Logger

	mu     sync.Mutex
	cached bool
	rows   []PortfolioRow
}

// NewPortfolio builds a portfolio strategy over a page source.
func NewPortfolio(source PageSource, logger *zap.Logger) *Portfolio {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Portfolio{source: source, logger: logger}
}

// Reset drops the cached page so the next Extract refetches. The
// orchestrator calls this at the start of each batch run.
func (p *Portfolio) Reset() {
	p.mu.Lock()
	p.cached = false
	p.rows = nil
	p.mu.Unlock()
}

// Extract returns the cached portfolio rows matching this building.
func (p *Portfolio) Extract(ctx context.Context, b scrape.Building) ([]scrape.RawUnit, error) {
	rows, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	var units []scrape.RawUnit
	for _, row := range rows {
		if MatchesBuilding(row.BuildingName, b.Name) {
			units = append(units, row.Unit)
		}
	}
	p.logger.Debug("portfolio extraction",
		zap.String("building", b.Name),
		zap.Int("page_rows", len(rows)),
		zap.Int("matched", len(units)),
	)
	return units, nil
}

func (p *Portfolio) load(ctx context.Context) ([]PortfolioRow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached {
		return p.rows, nil
	}
	rows, err := p.source(ctx)
	if err != nil {
		return nil, err
	}
	p.rows = rows
	p.cached = true
	return rows, nil
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9 ]`)
var spaces = regexp.MustCompile(`\s+`)

// NormalizeName lowercases a building name and strips punctuation so
// "100 W. Chestnut" and "100 W Chestnut" compare equal.
func NormalizeName(name string) string {
	n := nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "")
	return strings.TrimSpace(spaces.ReplaceAllString(n, " "))
}

// MatchesBuilding tests a portfolio page label against a roster name with
// two-way substring containment after normalization. Either side may be a
// prefix, suffix, or substring of the other.
func MatchesBuilding(pageLabel, rosterName string) bool {
	a := NormalizeName(pageLabel)
	b := NormalizeName(rosterName)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
