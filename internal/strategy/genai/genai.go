// Package genai is the catch-all extraction strategy for custom and
// long-tail sites with no recognized platform. It locates the best
// availability page without spending model tokens, then asks a generative
// model to extract unit records from the rendered page text.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	aigen "github.com/rentpulse/rentpulse/internal/genai"
	"github.com/rentpulse/rentpulse/internal/scrape"
	"github.com/rentpulse/rentpulse/internal/strategy/dom"
)

// Well-known availability page paths, tried before spending a link-scoring
// pass on the landing page.
var pathSuffixes = []string{
	"/availability",
	"/floorplans",
	"/floor-plans",
	"/availableunits",
	"/rentals",
}

// A candidate page must hit at least two of these to count as an
// availability page.
var pageKeywords = []string{"availab", "floorplan", "floor plan", "bed", "rent", "apply"}

// Prices that mean "not actually priced". Records carrying one are
// dropped after extraction.
var placeholderPrices = map[string]bool{
	"":                 true,
	"n/a":              true,
	"tbd":              true,
	"call":             true,
	"call for pricing": true,
	"contact":          true,
	"contact us":       true,
}

const systemPrompt = "You extract apartment availability data from rental building web pages. " +
	"Respond with a JSON array only, no prose and no code fences."

const extractionInstruction = `Extract all apartment units currently available for rent from this page.
For each available unit return an object with these keys:
  unit_number (the unit identifier, e.g. "101", "A3"; use the floor plan name if no literal unit number exists),
  bed_type (e.g. "Studio", "1 Bedroom", "2BR", "Convertible"),
  rent (monthly price as a string, e.g. "$1,800/mo", "2500"),
  availability_date (move-in date as a string, e.g. "Available Now", "March 1, 2026"),
  floor_plan_name (name of the floor plan if shown, otherwise null),
  baths (number of bathrooms as a string if shown, otherwise null),
  sqft (square footage if shown, otherwise null).
Only include units available for immediate rent (not waitlisted, leased, or "coming soon").
Exclude units with no listed price.
Return an empty JSON array if no available units are found.`

// Strategy extracts units with a generative model.
type Strategy struct {
	renderer scrape.Renderer
	client   aigen.Client
	logger   *zap.Logger
}

// New builds the generative fallback strategy.
func New(renderer scrape.Renderer, client aigen.Client, logger *zap.Logger) *Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategy{renderer: renderer, client: client, logger: logger}
}

// Extract locates the building's availability page, then runs model
// extraction over its rendered text. Malformed model output means zero
// results, never an error.
func (s *Strategy) Extract(ctx context.Context, b scrape.Building) ([]scrape.RawUnit, error) {
	doc, pageURL, err := s.locatePage(ctx, b)
	if err != nil {
		return nil, err
	}

	pageText := strings.TrimSpace(doc.Text())
	if pageText == "" {
		return nil, &scrape.TransportError{URL: pageURL, Err: fmt.Errorf("empty page text")}
	}

	prompt := extractionInstruction + "\n\nPAGE CONTENT:\n" + pageText
	reply, err := s.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("model extraction for %s: %w", b.Name, err)
	}

	units := parseModelOutput(reply)
	s.logger.Debug("genai extraction",
		zap.String("building", b.Name),
		zap.String("page", pageURL),
		zap.Int("units", len(units)),
	)
	return units, nil
}

// locatePage finds the page to extract from, without any generation cost:
// well-known path suffixes first, then the best-scored landing-page link,
// then the landing page itself.
func (s *Strategy) locatePage(ctx context.Context, b scrape.Building) (doc *goquery.Document, pageURL string, err error) {
	base := strings.TrimRight(b.URL, "/")
	parsed, perr := url.Parse(base)
	if perr == nil && parsed.Path != "" && parsed.Path != "/" {
		// The roster URL is already a deep link; don't guess siblings.
		parsed = nil
	}
	if parsed != nil {
		for _, suffix := range pathSuffixes {
			candidate := base + suffix
			d, rerr := s.renderDoc(ctx, candidate)
			if rerr != nil {
				continue
			}
			if looksLikeAvailabilityPage(d) {
				return d, candidate, nil
			}
		}
	}

	landing, err := s.renderDoc(ctx, b.URL)
	if err != nil {
		return nil, "", err
	}
	if best, score := scrape.BestLink(dom.Links(landing, b.URL)); score > 0 {
		if d, rerr := s.renderDoc(ctx, best.Href); rerr == nil {
			return d, best.Href, nil
		}
	}
	return landing, b.URL, nil
}

func (s *Strategy) renderDoc(ctx context.Context, target string) (*goquery.Document, error) {
	res, err := s.renderer.Render(ctx, scrape.RenderRequest{URL: target})
	if err != nil {
		return nil, err
	}
	if res.HTML == "" {
		return nil, &scrape.TransportError{URL: target, Err: fmt.Errorf("empty render")}
	}
	return dom.Parse(res.HTML)
}

func looksLikeAvailabilityPage(d *goquery.Document) bool {
	text := strings.ToLower(d.Text())
	hits := 0
	for _, kw := range pageKeywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return hits >= 2
}

// parseModelOutput defensively decodes the model reply. Anything that is
// not a JSON array of objects yields zero results. Records with a
// placeholder price or a blank identifier or bed type are dropped.
func parseModelOutput(reply string) []scrape.RawUnit {
	cleaned := stripCodeFence(strings.TrimSpace(reply))

	var parsed []map[string]any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil
	}

	var units []scrape.RawUnit
	for _, item := range parsed {
		unitNumber := asString(item[scrape.KeyUnitNumber])
		bedType := asString(item[scrape.KeyBedType])
		rent := asString(item[scrape.KeyRent])
		if unitNumber == "" || bedType == "" {
			continue
		}
		if placeholderPrices[strings.ToLower(strings.TrimSpace(rent))] {
			continue
		}
		units = append(units, scrape.RawUnit(item))
	}
	return units
}

// stripCodeFence tolerates a fenced reply despite the prompt.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func asString(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(n)
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%g", n)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
