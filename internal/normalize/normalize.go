// Package normalize converts raw strategy output into canonical unit
// records. It is pure: no I/O, no database. Every strategy's output passes
// through Normalize before anything is persisted.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

// ValidationError means a single raw record failed normalization. The
// record is dropped; the rest of the batch proceeds.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Normalize validates and converts one raw record into a canonical Unit.
// unit_number, bed_type, rent, and availability_date are all required;
// absence of any one fails the whole record. Optional fields get light
// type coercion and default to nil.
func Normalize(raw scrape.RawUnit, buildingID int64, now time.Time) (scrape.Unit, error) {
	unitNumber := stringField(raw, scrape.KeyUnitNumber)
	if unitNumber == "" {
		return scrape.Unit{}, &ValidationError{Field: scrape.KeyUnitNumber, Reason: "missing"}
	}

	rawBed := stringField(raw, scrape.KeyBedType)
	if rawBed == "" {
		return scrape.Unit{}, &ValidationError{Field: scrape.KeyBedType, Reason: "missing"}
	}
	bedType, nonCanonical := BedType(rawBed)

	rawRent, ok := raw[scrape.KeyRent]
	if !ok || stringify(rawRent) == "" {
		return scrape.Unit{}, &ValidationError{Field: scrape.KeyRent, Reason: "missing"}
	}
	rentCents, err := RentCents(stringify(rawRent))
	if err != nil {
		return scrape.Unit{}, &ValidationError{Field: scrape.KeyRent, Reason: err.Error()}
	}

	rawDate, ok := raw[scrape.KeyAvailabilityDate]
	if !ok {
		return scrape.Unit{}, &ValidationError{Field: scrape.KeyAvailabilityDate, Reason: "missing"}
	}
	availDate, err := AvailabilityDate(stringify(rawDate), now)
	if err != nil {
		return scrape.Unit{}, &ValidationError{Field: scrape.KeyAvailabilityDate, Reason: err.Error()}
	}

	unit := scrape.Unit{
		BuildingID:       buildingID,
		UnitNumber:       unitNumber,
		BedType:          bedType,
		NonCanonical:     nonCanonical,
		RentCents:        rentCents,
		AvailabilityDate: availDate,
		ScrapedAt:        now,
	}

	if v := stringField(raw, scrape.KeyFloorPlanName); v != "" {
		unit.FloorPlanName = &v
	}
	if v := stringField(raw, scrape.KeyFloorPlanURL); v != "" {
		unit.FloorPlanURL = &v
	}
	if v := stringField(raw, scrape.KeyBaths); v != "" {
		unit.Baths = &v
	}
	if sqft, ok := intField(raw, scrape.KeySqft); ok {
		unit.Sqft = &sqft
	}

	return unit, nil
}

// stringField returns the trimmed string form of an optional field, or ""
// when absent or nil.
func stringField(raw scrape.RawUnit, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(stringify(v))
}

// intField coerces a loosely typed numeric field to int64.
func intField(raw scrape.RawUnit, key string) (int64, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case float64:
		// JSON numbers decode as float64; render integral values without
		// the trailing ".0" so "1500" stays "1500".
		if s == float64(int64(s)) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
