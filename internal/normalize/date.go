package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Phrases (lowercased) that mean "available today". An empty string counts:
// several platforms leave the date blank for move-in-ready units.
var nowSynonyms = map[string]bool{
	"available now": true,
	"available":     true,
	"now":           true,
	"immediate":     true,
	"immediately":   true,
	"":              true,
}

// isoDate is the canonical availability date layout.
const isoDate = "2006-01-02"

// AvailabilityDate normalizes a raw availability value to an ISO
// YYYY-MM-DD string. "Available now" synonyms (any case) resolve to now's
// date; an "Available " prefix is stripped before parsing the remainder
// with a flexible date parser.
func AvailabilityDate(raw string, now time.Time) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if nowSynonyms[strings.ToLower(trimmed)] {
		return now.Format(isoDate), nil
	}
	datePart := trimmed
	if strings.HasPrefix(strings.ToLower(trimmed), "available ") {
		datePart = strings.TrimSpace(trimmed[len("available "):])
	}
	parsed, err := dateparse.ParseAny(datePart)
	if err != nil {
		return "", fmt.Errorf("cannot parse availability date %q", raw)
	}
	return parsed.Format(isoDate), nil
}
