// Package dom holds the goquery parsing heuristics shared by the static
// and rendered extraction strategies.
package dom

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

// Parse builds a goquery document from raw HTML.
func Parse(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// Listing-page selector heuristics. Leasing platforms render unit cards
// under a handful of recurring class-name families; the first selector
// group that matches anything wins.
var unitCardSelectors = []string{
	"[class*='unit-listing'], [class*='unit-row'], [class*='floorplan-row']",
	"[class*='available-unit'], [class*='floorplan-item'], [class*='listing-item']",
	"[class*='available-apartment'], [class*='fp-apartment'], [class*='unit-card'], [class*='apartment-item']",
}

const (
	bedSelector   = "[class*='bed'], [class*='bedroom'], [data-beds]"
	rentSelector  = "[class*='price'], [class*='rent'], [data-price]"
	availSelector = "[class*='avail'], [class*='available'], [class*='move-in']"
	numSelector   = "[class*='unit-number'], [class*='unit-name'], [data-unit], [class*='number']"
)

// UnitCards extracts raw unit records from a listing page using class-name
// heuristics. Rows missing both a bed element and a rent element are
// skipped; a missing availability element means "Available Now".
func UnitCards(doc *goquery.Document) []scrape.RawUnit {
	var cards *goquery.Selection
	for _, sel := range unitCardSelectors {
		cards = doc.Find(sel)
		if cards.Length() > 0 {
			break
		}
	}
	if cards == nil || cards.Length() == 0 {
		return nil
	}

	var units []scrape.RawUnit
	cards.Each(func(_ int, card *goquery.Selection) {
		bed := text(card.Find(bedSelector).First())
		rent := text(card.Find(rentSelector).First())
		if bed == "" || rent == "" {
			return
		}

		unitNumber := "N/A"
		numEl := card.Find(numSelector).First()
		if numEl.Length() > 0 {
			if v, ok := numEl.Attr("data-unit"); ok && strings.TrimSpace(v) != "" {
				unitNumber = strings.TrimSpace(v)
			} else if t := text(numEl); t != "" {
				unitNumber = t
			}
		}

		avail := text(card.Find(availSelector).First())
		if avail == "" {
			avail = "Available Now"
		}

		units = append(units, scrape.RawUnit{
			scrape.KeyUnitNumber:       unitNumber,
			scrape.KeyBedType:          bed,
			scrape.KeyRent:             rent,
			scrape.KeyAvailabilityDate: avail,
		})
	})
	return units
}

// Links collects the page's anchor links, resolved against base, skipping
// mailto, fragment-only, and self links.
func Links(doc *goquery.Document, base string) []scrape.Link {
	baseURL, err := url.Parse(base)
	if err != nil {
		baseURL = nil
	}

	var links []scrape.Link
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "#") {
			return
		}
		if baseURL != nil {
			if ref, err := url.Parse(href); err == nil {
				href = baseURL.ResolveReference(ref).String()
			}
		}
		if href == base {
			return
		}
		links = append(links, scrape.Link{Href: href, Text: text(a)})
	})
	return links
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}
