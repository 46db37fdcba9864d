// Package strategy wires one extraction strategy per platform family and
// dispatches by a building's platform tag.
package strategy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	aigen "github.com/rentpulse/rentpulse/internal/genai"
	"github.com/rentpulse/rentpulse/internal/scrape"
	genaistrategy "github.com/rentpulse/rentpulse/internal/strategy/genai"
	"github.com/rentpulse/rentpulse/internal/strategy/rendered"
	"github.com/rentpulse/rentpulse/internal/strategy/restapi"
	"github.com/rentpulse/rentpulse/internal/strategy/static"
)

// Deps carries the collaborators the strategies are built from.
type Deps struct {
	Fetcher  scrape.PageFetcher
	Renderer scrape.Renderer
	Model    aigen.Client
	Logger   *zap.Logger

	// RentCafeBaseURL overrides the production API endpoint (tests).
	RentCafeBaseURL string
	// PPMPageURL overrides the shared PPM availability page (tests).
	PPMPageURL string
}

// Registry maps platform tags to strategies.
type Registry struct {
	strategies map[scrape.Platform]scrape.Strategy
	portfolios []*static.Portfolio
}

// NewRegistry builds the production platform→strategy table.
func NewRegistry(deps Deps) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	single := static.NewSingle(deps.Fetcher, logger)
	ppm := static.NewPortfolio(static.NewPPMSource(deps.Renderer, deps.PPMPageURL), logger)
	rentcafe := restapi.NewRentCafe(deps.RentCafeBaseURL, logger)
	realpage := rendered.New(deps.Renderer, rendered.Config{ScoreLinks: true}, logger)
	groupfox := rendered.New(deps.Renderer, rendered.Config{
		Subpath:         "/floorplans",
		FollowPlanPages: true,
	}, logger)
	fallback := genaistrategy.New(deps.Renderer, deps.Model, logger)

	strategies := map[scrape.Platform]scrape.Strategy{
		scrape.PlatformRentCafe: rentcafe,
		scrape.PlatformPPM:      ppm,
		scrape.PlatformFunnel:   single,
		scrape.PlatformBozzuto:  single,
		scrape.PlatformAppFolio: single,
		scrape.PlatformSightMap: single,
		scrape.PlatformRealPage: realpage,
		scrape.PlatformGroupfox: groupfox,

		// Entrata and MRI have no dedicated strategy; the generative
		// fallback covers them alongside custom long-tail sites.
		scrape.PlatformEntrata: fallback,
		scrape.PlatformMRI:     fallback,
		scrape.PlatformLLM:     fallback,
	}

	return &Registry{
		strategies: strategies,
		portfolios: []*static.Portfolio{ppm},
	}
}

// For returns the strategy registered for a platform.
func (r *Registry) For(p scrape.Platform) (scrape.Strategy, bool) {
	s, ok := r.strategies[p]
	return s, ok
}

// Extract dispatches one building to its platform's strategy.
func (r *Registry) Extract(ctx context.Context, b scrape.Building) ([]scrape.RawUnit, error) {
	s, ok := r.For(b.Platform)
	if !ok {
		return nil, fmt.Errorf("platform %q: %w", b.Platform, scrape.ErrNoStrategy)
	}
	return s.Extract(ctx, b)
}

// Known reports whether a platform has a registered strategy.
func (r *Registry) Known(p scrape.Platform) bool {
	_, ok := r.strategies[p]
	return ok
}

// ResetRunCaches drops portfolio page caches so a new batch run refetches
// shared pages.
func (r *Registry) ResetRunCaches() {
	for _, p := range r.portfolios {
		p.Reset()
	}
}
