package static

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rentpulse/rentpulse/internal/scrape"
	"github.com/rentpulse/rentpulse/internal/strategy/dom"
)

// DefaultPPMURL is the shared availability page listing units for every
// PPM-managed building. Unit cards are injected by JavaScript after load,
// so the page needs a render pass.
const DefaultPPMURL = "https://ppmapartments.com/availability/"

// NewPPMSource builds a PageSource that renders the shared PPM page and
// parses its unit cards.
func NewPPMSource(renderer scrape.Renderer, pageURL string) PageSource {
	if pageURL == "" {
		pageURL = DefaultPPMURL
	}
	return func(ctx context.Context) ([]PortfolioRow, error) {
		res, err := renderer.Render(ctx, scrape.RenderRequest{URL: pageURL})
		if err != nil {
			return nil, err
		}
		if res.HTML == "" {
			return nil, &scrape.TransportError{URL: pageURL, Err: fmt.Errorf("empty render")}
		}
		doc, err := dom.Parse(res.HTML)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", pageURL, err)
		}
		return parsePPMPage(doc), nil
	}
}

// parsePPMPage reads the PPM card layout: each div.unit carries labeled
// div.spec children ("Building:", "Unit:", "Unit Type:", "Price:",
// "Availability:") plus an optional floor plan link.
func parsePPMPage(doc *goquery.Document) []PortfolioRow {
	var rows []PortfolioRow
	doc.Find("div.unit").Each(func(_ int, card *goquery.Selection) {
		buildingName := strings.TrimSpace(strings.TrimPrefix(
			strings.TrimSpace(card.Find("div.spec-building").First().Text()), "Building:"))
		if buildingName == "" {
			return
		}
		unitType := specValue(card, "Unit Type:")
		if unitType == "" {
			return
		}
		availability := specValue(card, "Availability:")
		if availability == "" {
			availability = "Available Now"
		}

		unit := scrape.RawUnit{
			scrape.KeyUnitNumber:       specValue(card, "Unit:"),
			scrape.KeyBedType:          unitType,
			scrape.KeyRent:             specValue(card, "Price:"),
			scrape.KeyAvailabilityDate: availability,
		}
		if fp := floorPlanName(card); fp != "" {
			unit[scrape.KeyFloorPlanName] = fp
		}
		rows = append(rows, PortfolioRow{BuildingName: buildingName, Unit: unit})
	})
	return rows
}

// specValue extracts the value of a labeled div.spec, e.g. "Unit:" →
// "304".
func specValue(card *goquery.Selection, label string) string {
	var value string
	card.Find("div.spec").EachWithBreak(func(_ int, spec *goquery.Selection) bool {
		text := strings.TrimSpace(spec.Text())
		if strings.HasPrefix(text, label) {
			value = strings.TrimSpace(text[len(label):])
			return false
		}
		return true
	})
	return value
}

func floorPlanName(card *goquery.Selection) string {
	var name string
	card.Find("div.spec").EachWithBreak(func(_ int, spec *goquery.Selection) bool {
		if strings.Contains(spec.Text(), "Floorplan") {
			name = strings.TrimSpace(spec.Find("a").First().Text())
			return false
		}
		return true
	})
	return name
}
