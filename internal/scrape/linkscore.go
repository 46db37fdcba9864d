package scrape

import "strings"

// Link is an internal page link considered by the availability-page scorer.
type Link struct {
	Href string
	Text string
}

// Keywords that suggest a link leads to availability or pricing data.
var availabilityKeywords = []string{
	"floor", "floorplan", "floor-plan", "availab", "apartment",
	"units", "rent", "leasing", "pricing", "search", "listing",
}

// Keywords that mark navigation, legal, or media noise. Any hit forces the
// score to zero regardless of positive matches.
var skipKeywords = []string{
	"blog", "news", "gallery", "photo", "contact", "about",
	"team", "careers", "press", "event", "social", "privacy",
	"terms", "sitemap", "login", "register", "resident",
}

// ScoreLink rates a link's likelihood of leading to an availability page.
// A score of zero means "no suitable link", not "pick arbitrarily".
func ScoreLink(href, text string) int {
	combined := strings.ToLower(href + " " + text)
	for _, skip := range skipKeywords {
		if strings.Contains(combined, skip) {
			return 0
		}
	}
	score := 0
	for _, kw := range availabilityKeywords {
		if strings.Contains(combined, kw) {
			score++
		}
	}
	return score
}

// BestLink returns the highest-scoring link and its score. Ties break in
// first-seen order. A zero score means no link qualified.
func BestLink(links []Link) (Link, int) {
	var best Link
	bestScore := 0
	for _, l := range links {
		if s := ScoreLink(l.Href, l.Text); s > bestScore {
			best = l
			bestScore = s
		}
	}
	return best, bestScore
}
