// Package rendered extracts units from pages that need a headless-browser
// render pass before parsing. Some platforms additionally require a
// secondary navigation: a fixed subpath, a floor-plan index walk, or the
// best-scored internal link.
package rendered

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/rentpulse/rentpulse/internal/scrape"
	"github.com/rentpulse/rentpulse/internal/strategy/dom"
)

// Config selects the navigation behavior for one platform family.
type Config struct {
	// Subpath, when set, redirects extraction to base+Subpath (e.g.
	// "/floorplans") instead of the landing page.
	Subpath string
	// FollowPlanPages walks the floor-plan index and parses unit rows from
	// each plan's sub-page.
	FollowPlanPages bool
	// ScoreLinks falls back to the best-scored internal link when the
	// landing page itself yields no units.
	ScoreLinks bool
}

// Strategy renders a page and parses unit data out of the result.
type Strategy struct {
	renderer scrape.Renderer
	cfg      Config
	logger   *zap.Logger
}

// New builds a rendered-page strategy.
func New(renderer scrape.Renderer, cfg Config, logger *zap.Logger) *Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategy{renderer: renderer, cfg: cfg, logger: logger}
}

// Extract renders the building's availability page and parses unit rows.
func (s *Strategy) Extract(ctx context.Context, b scrape.Building) ([]scrape.RawUnit, error) {
	target := b.URL
	if s.cfg.Subpath != "" {
		target = withSubpath(b.URL, s.cfg.Subpath)
	}

	doc, err := s.render(ctx, target)
	if err != nil {
		return nil, err
	}

	if s.cfg.FollowPlanPages {
		return s.extractPlanPages(ctx, b, doc)
	}

	units := dom.UnitCards(doc)
	if len(units) == 0 && s.cfg.ScoreLinks {
		if best, score := scrape.BestLink(dom.Links(doc, target)); score > 0 {
			s.logger.Debug("following scored link",
				zap.String("building", b.Name),
				zap.String("href", best.Href),
				zap.Int("score", score),
			)
			subDoc, err := s.render(ctx, best.Href)
			if err != nil {
				return nil, err
			}
			units = dom.UnitCards(subDoc)
		}
	}
	return units, nil
}

func (s *Strategy) render(ctx context.Context, target string) (*goquery.Document, error) {
	res, err := s.renderer.Render(ctx, scrape.RenderRequest{URL: target})
	if err != nil {
		return nil, err
	}
	if res.HTML == "" {
		return nil, &scrape.TransportError{URL: target, Err: fmt.Errorf("empty render")}
	}
	doc, err := dom.Parse(res.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", target, err)
	}
	return doc, nil
}

// floorPlan is one entry on a floor-plan index page.
type floorPlan struct {
	name  string
	beds  string
	baths string
	href  string
}

// extractPlanPages walks a floor-plan index: each card links to a plan
// sub-page whose table rows hold individual units. Plans whose action
// button says "Contact Us" have no availability and are skipped.
func (s *Strategy) extractPlanPages(ctx context.Context, b scrape.Building, index *goquery.Document) ([]scrape.RawUnit, error) {
	plans := parsePlanIndex(index)
	if len(plans) == 0 {
		return nil, nil
	}

	base := baseURL(b.URL)
	units := []scrape.RawUnit{}
	for _, plan := range plans {
		sub := resolveHref(base, plan.href)
		subDoc, err := s.render(ctx, sub)
		if err != nil {
			s.logger.Warn("plan sub-page render failed",
				zap.String("building", b.Name),
				zap.String("url", sub),
				zap.Error(err),
			)
			continue
		}
		units = append(units, parsePlanUnits(subDoc, plan)...)
	}
	return units, nil
}

func parsePlanIndex(doc *goquery.Document) []floorPlan {
	var plans []floorPlan
	doc.Find("div.card.text-center").Each(func(_ int, card *goquery.Selection) {
		name := strings.TrimSpace(card.Find("h2.card-title").First().Text())
		if name == "" {
			return
		}

		var beds, baths string
		card.Find("ul.list-inline li.list-inline-item").Each(func(_ int, item *goquery.Selection) {
			text := strings.TrimSpace(item.Text())
			switch {
			case strings.Contains(text, "Bed") || strings.Contains(text, "Studio"):
				beds = text
			case strings.Contains(text, "Bath"):
				baths = text
			}
		})

		btn := card.Find("a.floorplan-action-button").First()
		if btn.Length() == 0 || strings.Contains(btn.Text(), "Contact") {
			return
		}
		href, _ := btn.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		plans = append(plans, floorPlan{name: name, beds: beds, baths: baths, href: href})
	})
	return plans
}

var unitNumberPattern = regexp.MustCompile(`#(\S+)`)

// parsePlanUnits reads tr.unit-container rows: labeled cells carry
// "Apartment:#NNNN", "Rent:$X,XXX", and "Date:M/D/YYYY".
func parsePlanUnits(doc *goquery.Document, plan floorPlan) []scrape.RawUnit {
	var units []scrape.RawUnit
	doc.Find("tr.unit-container").Each(func(_ int, row *goquery.Selection) {
		unitNumber := "N/A"
		if text := strings.TrimSpace(row.Find("td.td-card-name").First().Text()); text != "" {
			if m := unitNumberPattern.FindStringSubmatch(text); m != nil {
				unitNumber = m[1]
			} else {
				unitNumber = strings.TrimSpace(strings.TrimPrefix(text, "Apartment:"))
			}
		}

		rent := "N/A"
		if text := strings.TrimSpace(row.Find("td.td-card-rent").First().Text()); text != "" {
			rent = strings.TrimSpace(strings.TrimPrefix(text, "Rent:"))
		}

		avail := "Available Now"
		if text := strings.TrimSpace(row.Find("td.td-card-available").First().Text()); text != "" {
			avail = strings.TrimSpace(strings.TrimPrefix(text, "Date:"))
		}

		unit := scrape.RawUnit{
			scrape.KeyUnitNumber:       unitNumber,
			scrape.KeyBedType:          plan.beds,
			scrape.KeyRent:             rent,
			scrape.KeyAvailabilityDate: avail,
			scrape.KeyFloorPlanName:    plan.name,
		}
		if plan.baths != "" {
			unit[scrape.KeyBaths] = plan.baths
		}
		units = append(units, unit)
	})
	return units
}

// withSubpath redirects a building URL to the given path unless it is
// already there.
func withSubpath(buildingURL, subpath string) string {
	parsed, err := url.Parse(strings.TrimRight(buildingURL, "/"))
	if err != nil {
		return buildingURL
	}
	path := strings.TrimRight(parsed.Path, "/")
	if strings.HasSuffix(path, subpath) || strings.Contains(path, subpath+"/") {
		return buildingURL
	}
	return fmt.Sprintf("%s://%s%s", parsed.Scheme, parsed.Host, subpath)
}

func baseURL(buildingURL string) string {
	parsed, err := url.Parse(buildingURL)
	if err != nil {
		return buildingURL
	}
	return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
}

func resolveHref(base, href string) string {
	baseParsed, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseParsed.ResolveReference(ref).String()
}
