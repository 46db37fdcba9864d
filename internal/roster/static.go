package roster

import (
	"context"
	"sync"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

// Static is a fixed in-memory roster. Used by tests and dry runs.
type Static struct {
	mu      sync.Mutex
	entries []scrape.RosterEntry

	Summaries []scrape.Summary
	Pushed    [][]scrape.AvailabilityRow
}

// NewStatic builds a Static roster over the given entries.
func NewStatic(entries ...scrape.RosterEntry) *Static {
	return &Static{entries: entries}
}

// Fetch returns the fixed entry list.
func (s *Static) Fetch(context.Context) ([]scrape.RosterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scrape.RosterEntry(nil), s.entries...), nil
}

// Push records what was handed back.
func (s *Static) Push(_ context.Context, summary scrape.Summary, rows []scrape.AvailabilityRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Summaries = append(s.Summaries, summary)
	s.Pushed = append(s.Pushed, rows)
	return nil
}
