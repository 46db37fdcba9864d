package scrape

import (
	"time"
)

// Platform identifies the leasing software family a building's website is
// built on. It determines which extraction strategy runs for the building.
type Platform string

// Known platform tags. A building carries exactly one.
const (
	PlatformRentCafe Platform = "rentcafe"
	PlatformPPM      Platform = "ppm"
	PlatformFunnel   Platform = "funnel"
	PlatformRealPage Platform = "realpage"
	PlatformBozzuto  Platform = "bozzuto"
	PlatformGroupfox Platform = "groupfox"
	PlatformAppFolio Platform = "appfolio"
	PlatformSightMap Platform = "sightmap"
	PlatformEntrata  Platform = "entrata"
	PlatformMRI      Platform = "mri"

	// PlatformLLM is the catch-all for custom and long-tail sites; it routes
	// to the generative fallback strategy.
	PlatformLLM Platform = "llm"

	// PlatformNeedsClassification marks a building neither stage of the
	// classifier could tag. It is skipped by batch runs and queued for
	// operator review.
	PlatformNeedsClassification Platform = "needs_classification"

	// PlatformDead marks a building administratively excluded from scraping.
	PlatformDead Platform = "dead"
)

// UsesBrowser reports whether the platform's strategy drives a headless
// browser. Browser-driven platforms get tighter concurrency and a longer
// politeness delay.
func (p Platform) UsesBrowser() bool {
	switch p {
	case PlatformPPM, PlatformRealPage, PlatformGroupfox, PlatformEntrata, PlatformMRI, PlatformLLM:
		return true
	}
	return false
}

// Schedulable reports whether buildings on this platform participate in
// batch runs.
func (p Platform) Schedulable() bool {
	return p != "" && p != PlatformNeedsClassification && p != PlatformDead
}

// Status is a building's scrape health state.
type Status string

// Building health states.
const (
	StatusNever Status = "never"
	// StatusSuccess means the last scrape completed and returned data (or a
	// small number of confirmed-empty results).
	StatusSuccess Status = "success"
	// StatusFailed means the last scrape raised an error; stored units are
	// the set from the last successful scrape.
	StatusFailed Status = "failed"
	// StatusNeedsAttention means scrapes keep succeeding but finding zero
	// units. The scraper may be silently broken; investigate.
	StatusNeedsAttention Status = "needs_attention"
)

// Building is one rental building from the roster. The roster owns
// identity and classification; the state machine mutates health fields
// during scraping.
type Building struct {
	ID                   int64
	Name                 string
	URL                  string
	Neighborhood         string
	ManagementCompany    string
	Platform             Platform
	PropertyCode         string // per-platform credential, e.g. a Voyager property code
	APIToken             string // per-platform credential paired with PropertyCode
	LastScrapeStatus     Status
	LastScrapedAt        *time.Time
	ConsecutiveZeroCount int
}

// HasCredentials reports whether both halves of the API credential pair
// are present.
func (b Building) HasCredentials() bool {
	return b.PropertyCode != "" && b.APIToken != ""
}

// RawUnit is a strategy-produced, pre-normalization record. Values are
// loosely typed strings or numbers in whatever shape the source platform
// produced; the normalizer is the only validation boundary.
type RawUnit map[string]any

// Required RawUnit keys. A record missing any of these fails normalization.
const (
	KeyUnitNumber       = "unit_number"
	KeyBedType          = "bed_type"
	KeyRent             = "rent"
	KeyAvailabilityDate = "availability_date"
	KeyFloorPlanName    = "floor_plan_name"
	KeyFloorPlanURL     = "floor_plan_url"
	KeyBaths            = "baths"
	KeySqft             = "sqft"
)

// Unit is a canonical, normalized availability record. Units are a
// snapshot: the full set for a building is replaced on every successful
// scrape.
type Unit struct {
	BuildingID       int64
	UnitNumber       string
	BedType          string
	NonCanonical     bool
	RentCents        int64
	AvailabilityDate string // ISO YYYY-MM-DD
	FloorPlanName    *string
	FloorPlanURL     *string
	Baths            *string
	Sqft             *int64
	ScrapedAt        time.Time
}

// Run is one immutable scrape attempt audit row. Appended on every
// transition, never mutated, pruned by age.
type Run struct {
	ID         int64
	BuildingID int64
	RunAt      time.Time
	Status     Status
	UnitCount  int
	Error      string
}

// MaxRunError caps the error text stored on a Run row.
const MaxRunError = 500

// TruncateError shortens an error message to fit a Run row.
func TruncateError(msg string) string {
	if len(msg) > MaxRunError {
		return msg[:MaxRunError]
	}
	return msg
}

// Result is the terminal outcome of one extraction attempt, handed to the
// store for the atomic state transition.
type Result struct {
	Succeeded bool
	Units     []Unit // normalized set; meaningful only when Succeeded
	Err       string // truncated failure reason when !Succeeded
	At        time.Time
}

// Outcome is the per-building task summary collected by the orchestrator.
// Success, needs_attention, failure, and unexpected faults all fold into
// this one shape.
type Outcome struct {
	BuildingID   int64
	BuildingName string
	Platform     Platform
	Status       Status
	UnitCount    int
	Err          string
	ScrapedAt    time.Time
}

// Summary aggregates a whole batch run.
type Summary struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	Total       int
	Succeeded   int
	Failed      int
	Attention   int
	TotalUnits  int
	PrunedRuns  int64
	RosterStats RosterSyncStats
}

// RosterEntry is one row of the authoritative external building list,
// keyed by URL.
type RosterEntry struct {
	Name              string
	URL               string
	Neighborhood      string
	ManagementCompany string
	Platform          Platform // operator override; wins over classification
	PropertyCode      string
	APIToken          string
}

// RosterSyncStats reports what a roster sync changed.
type RosterSyncStats struct {
	Added   int
	Updated int
	Deleted int
}

// AvailabilityRow is one flattened unit row pushed back to the roster
// after a batch run.
type AvailabilityRow struct {
	BuildingName     string
	Neighborhood     string
	UnitNumber       string
	BedType          string
	RentCents        int64
	AvailabilityDate string
	Sqft             *int64
}

// Credentials is the (property code, token) pair recovered by the
// network-interception discovery tool.
type Credentials struct {
	PropertyCode string
	APIToken     string
}
