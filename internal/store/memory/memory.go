// Package memory is an in-process Store used by dry runs and orchestrator
// tests. It applies the same state machine as the Postgres store but keeps
// everything in maps behind one mutex.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

// ErrNotFound mirrors the Postgres store's missing-row error.
var ErrNotFound = errors.New("memory: building not found")

// Store holds buildings, units, and runs in memory.
type Store struct {
	mu            sync.Mutex
	nextID        int64
	nextRunID     int64
	buildings     map[int64]scrape.Building
	units         map[int64][]scrape.Unit
	runs          []scrape.Run
	zeroThreshold int
}

// Option configures a Store.
type Option func(*Store)

// WithZeroThreshold overrides the consecutive-zero threshold.
func WithZeroThreshold(n int) Option {
	return func(s *Store) { s.zeroThreshold = n }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		nextID:        1,
		nextRunID:     1,
		buildings:     make(map[int64]scrape.Building),
		units:         make(map[int64][]scrape.Unit),
		zeroThreshold: scrape.DefaultZeroThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncRoster upserts entries by URL and deletes buildings absent from the
// roster. Entries without a URL are skipped.
func (s *Store) SyncRoster(_ context.Context, entries []scrape.RosterEntry) (scrape.RosterSyncStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats scrape.RosterSyncStats
	keep := make(map[string]bool, len(entries))
	byURL := make(map[string]int64, len(s.buildings))
	for id, b := range s.buildings {
		byURL[b.URL] = id
	}

	for _, e := range entries {
		if e.URL == "" {
			continue
		}
		keep[e.URL] = true
		if id, ok := byURL[e.URL]; ok {
			b := s.buildings[id]
			b.Name = e.Name
			b.Neighborhood = e.Neighborhood
			b.ManagementCompany = e.ManagementCompany
			if e.Platform != "" {
				b.Platform = e.Platform
			}
			if e.PropertyCode != "" {
				b.PropertyCode = e.PropertyCode
			}
			if e.APIToken != "" {
				b.APIToken = e.APIToken
			}
			s.buildings[id] = b
			stats.Updated++
			continue
		}
		id := s.nextID
		s.nextID++
		s.buildings[id] = scrape.Building{
			ID:                id,
			Name:              e.Name,
			URL:               e.URL,
			Neighborhood:      e.Neighborhood,
			ManagementCompany: e.ManagementCompany,
			Platform:          e.Platform,
			PropertyCode:      e.PropertyCode,
			APIToken:          e.APIToken,
			LastScrapeStatus:  scrape.StatusNever,
		}
		stats.Added++
	}

	for id, b := range s.buildings {
		if !keep[b.URL] {
			delete(s.buildings, id)
			delete(s.units, id)
			stats.Deleted++
		}
	}
	return stats, nil
}

// Add inserts a building directly, bypassing roster sync. Test helper.
func (s *Store) Add(b scrape.Building) scrape.Building {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.nextID
		s.nextID++
	} else if b.ID >= s.nextID {
		s.nextID = b.ID + 1
	}
	if b.LastScrapeStatus == "" {
		b.LastScrapeStatus = scrape.StatusNever
	}
	s.buildings[b.ID] = b
	return b
}

// ListSchedulable returns buildings whose platform participates in batch
// runs, ordered by ID.
func (s *Store) ListSchedulable(context.Context) ([]scrape.Building, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []scrape.Building
	for _, b := range s.buildings {
		if b.Platform.Schedulable() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetBuilding returns one building by ID.
func (s *Store) GetBuilding(_ context.Context, id int64) (scrape.Building, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buildings[id]
	if !ok {
		return scrape.Building{}, ErrNotFound
	}
	return b, nil
}

// FindBuildings matches name or URL case-insensitively by substring.
func (s *Store) FindBuildings(_ context.Context, nameOrURL string) ([]scrape.Building, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(nameOrURL)
	var out []scrape.Building
	for _, b := range s.buildings {
		if strings.Contains(strings.ToLower(b.Name), q) || strings.Contains(strings.ToLower(b.URL), q) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetPlatform tags a building.
func (s *Store) SetPlatform(_ context.Context, id int64, platform scrape.Platform) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buildings[id]
	if !ok {
		return ErrNotFound
	}
	b.Platform = platform
	s.buildings[id] = b
	return nil
}

// SetCredentials stores a building's API credential pair.
func (s *Store) SetCredentials(_ context.Context, id int64, creds scrape.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buildings[id]
	if !ok {
		return ErrNotFound
	}
	b.PropertyCode = creds.PropertyCode
	b.APIToken = creds.APIToken
	s.buildings[id] = b
	return nil
}

// SaveResult applies the state transition, the unit replacement, and the
// audit row under one lock.
func (s *Store) SaveResult(_ context.Context, buildingID int64, res scrape.Result) (scrape.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buildings[buildingID]
	if !ok {
		return "", ErrNotFound
	}
	next := scrape.NextState(b, res.Succeeded, len(res.Units), s.zeroThreshold)

	if next.ReplaceUnits {
		s.units[buildingID] = append([]scrape.Unit(nil), res.Units...)
	}
	b.LastScrapeStatus = next.Status
	b.ConsecutiveZeroCount = next.ZeroCount
	at := res.At
	b.LastScrapedAt = &at
	s.buildings[buildingID] = b

	// Audit rows record the attempt outcome only; needs_attention lives on
	// the building, never on a run row.
	runStatus := scrape.StatusSuccess
	if !res.Succeeded {
		runStatus = scrape.StatusFailed
	}
	run := scrape.Run{
		ID:         s.nextRunID,
		BuildingID: buildingID,
		RunAt:      res.At,
		Status:     runStatus,
		UnitCount:  len(res.Units),
		Error:      scrape.TruncateError(res.Err),
	}
	s.nextRunID++
	s.runs = append(s.runs, run)
	return next.Status, nil
}

// Units returns the stored unit snapshot for one building. Test helper.
func (s *Store) Units(buildingID int64) []scrape.Unit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scrape.Unit(nil), s.units[buildingID]...)
}

// Runs returns all audit rows. Test helper.
func (s *Store) Runs() []scrape.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scrape.Run(nil), s.runs...)
}

// ListAvailability flattens every stored unit joined with its building,
// ordered by building name then unit number.
func (s *Store) ListAvailability(context.Context) ([]scrape.AvailabilityRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []scrape.AvailabilityRow
	for id, units := range s.units {
		b, ok := s.buildings[id]
		if !ok {
			continue
		}
		for _, u := range units {
			out = append(out, scrape.AvailabilityRow{
				BuildingName:     b.Name,
				Neighborhood:     b.Neighborhood,
				UnitNumber:       u.UnitNumber,
				BedType:          u.BedType,
				RentCents:        u.RentCents,
				AvailabilityDate: u.AvailabilityDate,
				Sqft:             u.Sqft,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BuildingName != out[j].BuildingName {
			return out[i].BuildingName < out[j].BuildingName
		}
		return out[i].UnitNumber < out[j].UnitNumber
	})
	return out, nil
}

// PruneRuns drops audit rows older than the cutoff.
func (s *Store) PruneRuns(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.runs[:0]
	var pruned int64
	for _, r := range s.runs {
		if r.RunAt.Before(olderThan) {
			pruned++
			continue
		}
		kept = append(kept, r)
	}
	s.runs = kept
	return pruned, nil
}
