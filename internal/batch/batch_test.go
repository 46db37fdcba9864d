package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentpulse/rentpulse/internal/roster"
	"github.com/rentpulse/rentpulse/internal/scrape"
	"github.com/rentpulse/rentpulse/internal/store/memory"
)

// stubExtractor dispatches to per-platform funcs and tracks in-flight
// browser extractions.
type stubExtractor struct {
	extract func(ctx context.Context, b scrape.Building) ([]scrape.RawUnit, error)

	mu                 sync.Mutex
	inFlightBrowser    int
	maxInFlightBrowser int
	resets             atomic.Int32
}

func (s *stubExtractor) Extract(ctx context.Context, b scrape.Building) ([]scrape.RawUnit, error) {
	if b.Platform.UsesBrowser() {
		s.mu.Lock()
		s.inFlightBrowser++
		if s.inFlightBrowser > s.maxInFlightBrowser {
			s.maxInFlightBrowser = s.inFlightBrowser
		}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.inFlightBrowser--
			s.mu.Unlock()
		}()
	}
	return s.extract(ctx, b)
}

func (s *stubExtractor) Known(p scrape.Platform) bool { return p != scrape.PlatformMRI }
func (s *stubExtractor) ResetRunCaches()              { s.resets.Add(1) }

func rawUnit(num string) scrape.RawUnit {
	return scrape.RawUnit{
		scrape.KeyUnitNumber:       num,
		scrape.KeyBedType:          "1 Bed",
		scrape.KeyRent:             "$2,100",
		scrape.KeyAvailabilityDate: "Available Now",
	}
}

func fastConfig() Config {
	return Config{BrowserDelay: time.Millisecond, HTTPDelay: time.Millisecond, MaxWorkers: 4}
}

func TestRun_HappyPath(t *testing.T) {
	store := memory.New()
	src := roster.NewStatic(
		scrape.RosterEntry{Name: "A", URL: "https://a.com", Platform: scrape.PlatformFunnel},
		scrape.RosterEntry{Name: "B", URL: "https://b.com", Platform: scrape.PlatformRealPage},
	)
	ext := &stubExtractor{extract: func(_ context.Context, b scrape.Building) ([]scrape.RawUnit, error) {
		return []scrape.RawUnit{rawUnit("101")}, nil
	}}

	o := New(store, src, ext, fastConfig(), nil)
	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 2, summary.TotalUnits)
	assert.Equal(t, scrape.RosterSyncStats{Added: 2}, summary.RosterStats)
	assert.Equal(t, int32(1), ext.resets.Load())

	// Availability snapshot was pushed back.
	require.Len(t, src.Pushed, 1)
	assert.Len(t, src.Pushed[0], 2)
}

func TestRun_FailureIsolated(t *testing.T) {
	store := memory.New()
	src := roster.NewStatic(
		scrape.RosterEntry{Name: "Good", URL: "https://good.com", Platform: scrape.PlatformFunnel},
		scrape.RosterEntry{Name: "Bad", URL: "https://bad.com", Platform: scrape.PlatformFunnel},
	)
	ext := &stubExtractor{extract: func(_ context.Context, b scrape.Building) ([]scrape.RawUnit, error) {
		if b.Name == "Bad" {
			return nil, errors.New("site exploded")
		}
		return []scrape.RawUnit{rawUnit("202")}, nil
	}}

	o := New(store, src, ext, fastConfig(), nil)
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	bad, err := store.FindBuildings(context.Background(), "bad")
	require.NoError(t, err)
	require.Len(t, bad, 1)
	assert.Equal(t, scrape.StatusFailed, bad[0].LastScrapeStatus)

	runs := store.Runs()
	require.Len(t, runs, 2)
}

func TestRun_PanicBecomesFailedOutcome(t *testing.T) {
	store := memory.New()
	src := roster.NewStatic(
		scrape.RosterEntry{Name: "Boom", URL: "https://boom.com", Platform: scrape.PlatformFunnel},
	)
	ext := &stubExtractor{extract: func(context.Context, scrape.Building) ([]scrape.RawUnit, error) {
		panic("selector changed")
	}}

	o := New(store, src, ext, fastConfig(), nil)
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	runs := store.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, scrape.StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "panic: selector changed")
}

func TestRun_FiveZeroSuccessesFlagAttention(t *testing.T) {
	store := memory.New()
	src := roster.NewStatic(
		scrape.RosterEntry{Name: "Empty", URL: "https://empty.com", Platform: scrape.PlatformFunnel},
	)
	ext := &stubExtractor{extract: func(context.Context, scrape.Building) ([]scrape.RawUnit, error) {
		return nil, nil
	}}

	o := New(store, src, ext, fastConfig(), nil)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		summary, err := o.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Succeeded, "run %d", i+1)
	}
	summary, err := o.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Succeeded)
	assert.Equal(t, 1, summary.Attention)
}

func TestRun_UnknownPlatformSkipped(t *testing.T) {
	store := memory.New()
	// The extractor stub reports mri as unknown.
	src := roster.NewStatic(
		scrape.RosterEntry{Name: "A", URL: "https://a.com", Platform: scrape.PlatformFunnel},
		scrape.RosterEntry{Name: "M", URL: "https://m.com", Platform: scrape.PlatformMRI},
	)
	ext := &stubExtractor{extract: func(context.Context, scrape.Building) ([]scrape.RawUnit, error) {
		return []scrape.RawUnit{rawUnit("1")}, nil
	}}

	o := New(store, src, ext, fastConfig(), nil)
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
}

func TestRun_RosterFetchFailureContinues(t *testing.T) {
	store := memory.New()
	store.Add(scrape.Building{Name: "Stored", URL: "https://stored.com", Platform: scrape.PlatformFunnel})

	ext := &stubExtractor{extract: func(context.Context, scrape.Building) ([]scrape.RawUnit, error) {
		return []scrape.RawUnit{rawUnit("1")}, nil
	}}
	o := New(store, failingRoster{}, ext, fastConfig(), nil)

	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
}

type failingRoster struct{}

func (failingRoster) Fetch(context.Context) ([]scrape.RosterEntry, error) {
	return nil, errors.New("roster unavailable")
}
func (failingRoster) Push(context.Context, scrape.Summary, []scrape.AvailabilityRow) error {
	return errors.New("roster unavailable")
}

type listFailStore struct {
	*memory.Store
}

func (listFailStore) ListSchedulable(context.Context) ([]scrape.Building, error) {
	return nil, errors.New("db down")
}

func TestRun_BuildingListFailureAborts(t *testing.T) {
	store := listFailStore{memory.New()}
	ext := &stubExtractor{extract: func(context.Context, scrape.Building) ([]scrape.RawUnit, error) {
		return nil, nil
	}}
	o := New(store, nil, ext, fastConfig(), nil)
	_, err := o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load building list")
}

func TestRun_BrowserSlotsBound(t *testing.T) {
	store := memory.New()
	entries := make([]scrape.RosterEntry, 6)
	for i := range entries {
		entries[i] = scrape.RosterEntry{
			Name:     string(rune('A' + i)),
			URL:      "https://" + string(rune('a'+i)) + ".com",
			Platform: scrape.PlatformRealPage,
		}
	}
	src := roster.NewStatic(entries...)
	ext := &stubExtractor{extract: func(context.Context, scrape.Building) ([]scrape.RawUnit, error) {
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	}}

	cfg := fastConfig()
	cfg.BrowserSlots = 1
	o := New(store, src, ext, cfg, nil)
	_, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ext.maxInFlightBrowser)
}

func TestScrapeBuilding(t *testing.T) {
	store := memory.New()
	b := store.Add(scrape.Building{Name: "Solo", URL: "https://solo.com", Platform: scrape.PlatformFunnel})
	ext := &stubExtractor{extract: func(context.Context, scrape.Building) ([]scrape.RawUnit, error) {
		return []scrape.RawUnit{rawUnit("808")}, nil
	}}

	o := New(store, nil, ext, fastConfig(), nil)
	out, err := o.ScrapeBuilding(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, scrape.StatusSuccess, out.Status)
	assert.Equal(t, 1, out.UnitCount)

	// Unknown platform is rejected before extraction.
	m := store.Add(scrape.Building{Name: "M", URL: "https://m2.com", Platform: scrape.PlatformMRI})
	_, err = o.ScrapeBuilding(context.Background(), m.ID)
	assert.ErrorIs(t, err, scrape.ErrNoStrategy)
}

func TestRun_DropsInvalidRecordsOnly(t *testing.T) {
	store := memory.New()
	src := roster.NewStatic(
		scrape.RosterEntry{Name: "Mixed", URL: "https://mixed.com", Platform: scrape.PlatformFunnel},
	)
	ext := &stubExtractor{extract: func(context.Context, scrape.Building) ([]scrape.RawUnit, error) {
		return []scrape.RawUnit{
			rawUnit("101"),
			{scrape.KeyUnitNumber: "102"}, // missing bed type and rent
		}, nil
	}}

	o := New(store, src, ext, fastConfig(), nil)
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.TotalUnits)
}
