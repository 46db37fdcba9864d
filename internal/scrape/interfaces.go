package scrape

import (
	"context"
	"time"
)

// Strategy extracts raw unit records for one building. An empty slice is a
// valid success meaning confirmed zero availability; a returned error means
// the extraction itself failed.
type Strategy interface {
	Extract(ctx context.Context, b Building) ([]RawUnit, error)
}

// Page is the body of a plain HTTP fetch.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// PageFetcher fetches a URL without JavaScript execution.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (Page, error)
}

// RenderRequest asks for a JS-rendered page. OnRequest, when set, observes
// every outgoing request URL the page issues while loading; it is used by
// the credential discovery tool.
type RenderRequest struct {
	URL       string
	Delay     time.Duration      // extra settle time after DOM ready
	OnRequest func(url string)
}

// RenderResult is the outcome of a headless render.
type RenderResult struct {
	URL        string // final URL after redirects
	StatusCode int
	HTML       string
	Duration   time.Duration
}

// Renderer fetches a URL through a headless browser and returns the fully
// rendered DOM.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (RenderResult, error)
}

// Store persists buildings, units, and scrape runs. SaveResult must apply
// the whole state transition in a single transaction: a crash mid-write
// must never leave a building's status updated without its audit row, or
// vice versa.
type Store interface {
	SyncRoster(ctx context.Context, entries []RosterEntry) (RosterSyncStats, error)
	ListSchedulable(ctx context.Context) ([]Building, error)
	GetBuilding(ctx context.Context, id int64) (Building, error)
	FindBuildings(ctx context.Context, nameOrURL string) ([]Building, error)
	SetPlatform(ctx context.Context, id int64, platform Platform) error
	SetCredentials(ctx context.Context, id int64, creds Credentials) error
	SaveResult(ctx context.Context, buildingID int64, res Result) (Status, error)
	ListAvailability(ctx context.Context) ([]AvailabilityRow, error)
	PruneRuns(ctx context.Context, olderThan time.Time) (int64, error)
}

// Roster is the authoritative external building list. Fetch supplies the
// list; Push hands back a run summary plus the current availability
// snapshot after each batch.
type Roster interface {
	Fetch(ctx context.Context) ([]RosterEntry, error)
	Push(ctx context.Context, summary Summary, rows []AvailabilityRow) error
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
