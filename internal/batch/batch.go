// Package batch runs the full scrape cycle: roster sync, dispatch of every
// schedulable building through its platform strategy under concurrency
// caps, state persistence, and the post-run summary push.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/rentpulse/rentpulse/internal/normalize"
	"github.com/rentpulse/rentpulse/internal/scrape"
)

// Defaults for the dispatch caps and politeness delays.
const (
	DefaultMaxWorkers   = 8
	DefaultBrowserSlots = 1
	DefaultHTTPSlots    = 2
	DefaultBrowserDelay = time.Second
	DefaultHTTPDelay    = 200 * time.Millisecond
	DefaultRunRetention = 30 * 24 * time.Hour
)

// Extractor dispatches a building to its platform strategy. Satisfied by
// *strategy.Registry.
type Extractor interface {
	Extract(ctx context.Context, b scrape.Building) ([]scrape.RawUnit, error)
	Known(p scrape.Platform) bool
	ResetRunCaches()
}

// Recorder receives per-scrape observations. Satisfied by
// *metrics.Metrics; nil disables recording.
type Recorder interface {
	ScrapeCompleted(platform scrape.Platform, status scrape.Status, units int, d time.Duration)
}

// Config tunes a batch run.
type Config struct {
	MaxWorkers   int           // global concurrent scrape cap
	BrowserSlots int           // concurrent headless-browser scrapes
	HTTPSlots    int           // concurrent plain-HTTP scrapes
	BrowserDelay time.Duration // politeness delay after a browser scrape
	HTTPDelay    time.Duration // politeness delay after an HTTP scrape
	RunRetention time.Duration // audit rows older than this are pruned
	SkipSync     bool          // reuse the stored building list as-is
}

func (c Config) withDefaults() Config {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = DefaultMaxWorkers
	}
	if c.BrowserSlots <= 0 {
		c.BrowserSlots = DefaultBrowserSlots
	}
	if c.HTTPSlots <= 0 {
		c.HTTPSlots = DefaultHTTPSlots
	}
	if c.BrowserDelay <= 0 {
		c.BrowserDelay = DefaultBrowserDelay
	}
	if c.HTTPDelay <= 0 {
		c.HTTPDelay = DefaultHTTPDelay
	}
	if c.RunRetention <= 0 {
		c.RunRetention = DefaultRunRetention
	}
	return c
}

// Orchestrator owns one batch pipeline instance.
type Orchestrator struct {
	store     scrape.Store
	roster    scrape.Roster
	extractor Extractor
	recorder  Recorder
	clock     scrape.Clock
	cfg       Config
	logger    *zap.Logger
}

// New builds an Orchestrator. roster and recorder may be nil.
func New(store scrape.Store, roster scrape.Roster, extractor Extractor, cfg Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		store:     store,
		roster:    roster,
		extractor: extractor,
		clock:     scrape.SystemClock{},
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock injects a test clock.
func WithClock(c scrape.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// SetSkipSync toggles the roster sync for subsequent runs.
func (o *Orchestrator) SetSkipSync(skip bool) {
	o.cfg.SkipSync = skip
}

// Run executes one full batch cycle. Only the building-list load aborts the
// run; roster sync and summary push failures are logged and skipped.
func (o *Orchestrator) Run(ctx context.Context) (scrape.Summary, error) {
	started := o.clock.Now()
	summary := scrape.Summary{StartedAt: started}

	summary.RosterStats = o.syncRoster(ctx)

	buildings, err := o.store.ListSchedulable(ctx)
	if err != nil {
		return summary, fmt.Errorf("load building list: %w", err)
	}
	scheduled := buildings[:0]
	for _, b := range buildings {
		if !o.extractor.Known(b.Platform) {
			o.logger.Warn("no strategy for platform, skipping building",
				zap.Int64("building_id", b.ID), zap.String("platform", string(b.Platform)))
			continue
		}
		scheduled = append(scheduled, b)
	}

	o.extractor.ResetRunCaches()
	outcomes := o.dispatch(ctx, scheduled)

	summary.Total = len(outcomes)
	for _, out := range outcomes {
		summary.TotalUnits += out.UnitCount
		switch out.Status {
		case scrape.StatusSuccess:
			summary.Succeeded++
		case scrape.StatusNeedsAttention:
			summary.Attention++
		default:
			summary.Failed++
		}
	}

	if pruned, err := o.store.PruneRuns(ctx, started.Add(-o.cfg.RunRetention)); err != nil {
		o.logger.Warn("prune runs failed", zap.Error(err))
	} else {
		summary.PrunedRuns = pruned
	}

	summary.FinishedAt = o.clock.Now()
	o.push(ctx, summary)

	o.logger.Info("batch run finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("needs_attention", summary.Attention),
		zap.Int("units", summary.TotalUnits),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

// syncRoster pulls the roster and upserts it. Failures here must not kill
// the run: the previously synced building list still works.
func (o *Orchestrator) syncRoster(ctx context.Context) scrape.RosterSyncStats {
	if o.roster == nil || o.cfg.SkipSync {
		return scrape.RosterSyncStats{}
	}
	entries, err := o.roster.Fetch(ctx)
	if err != nil {
		o.logger.Warn("roster fetch failed, continuing with stored buildings", zap.Error(err))
		return scrape.RosterSyncStats{}
	}
	stats, err := o.store.SyncRoster(ctx, entries)
	if err != nil {
		o.logger.Warn("roster sync failed, continuing with stored buildings", zap.Error(err))
		return scrape.RosterSyncStats{}
	}
	o.logger.Info("roster synced",
		zap.Int("added", stats.Added), zap.Int("updated", stats.Updated), zap.Int("deleted", stats.Deleted))
	return stats
}

// dispatch fans buildings out under the global worker cap plus a
// per-family slot pool. Browser-driven platforms share a tighter pool and
// a longer politeness delay than plain-HTTP ones.
func (o *Orchestrator) dispatch(ctx context.Context, buildings []scrape.Building) []scrape.Outcome {
	sem := semaphore.NewWeighted(int64(o.cfg.MaxWorkers))
	browserSlots := make(chan struct{}, o.cfg.BrowserSlots)
	httpSlots := make(chan struct{}, o.cfg.HTTPSlots)

	outcomes := make([]scrape.Outcome, len(buildings))
	var wg sync.WaitGroup
	for i, b := range buildings {
		wg.Add(1)
		go func(i int, b scrape.Building) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = canceledOutcome(b, o.clock.Now())
				return
			}
			defer sem.Release(1)

			slots, delay := httpSlots, o.cfg.HTTPDelay
			if b.Platform.UsesBrowser() {
				slots, delay = browserSlots, o.cfg.BrowserDelay
			}
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				outcomes[i] = canceledOutcome(b, o.clock.Now())
				return
			}
			outcomes[i] = o.scrapeOne(ctx, b)
			// Politeness delay holds only the platform slot so unrelated
			// platforms keep flowing.
			sleep(ctx, delay)
			<-slots
		}(i, b)
	}
	wg.Wait()
	return outcomes
}

// ScrapeBuilding runs a single building end to end, outside a batch. Used
// by the admin API and the one-off CLI command.
func (o *Orchestrator) ScrapeBuilding(ctx context.Context, id int64) (scrape.Outcome, error) {
	b, err := o.store.GetBuilding(ctx, id)
	if err != nil {
		return scrape.Outcome{}, err
	}
	if !o.extractor.Known(b.Platform) {
		return scrape.Outcome{}, fmt.Errorf("building %d platform %q: %w", id, b.Platform, scrape.ErrNoStrategy)
	}
	return o.scrapeOne(ctx, b), nil
}

// scrapeOne runs extract → normalize → SaveResult for one building. A
// panicking strategy is folded into a failed outcome so one bad site never
// takes down the batch.
func (o *Orchestrator) scrapeOne(ctx context.Context, b scrape.Building) (out scrape.Outcome) {
	started := o.clock.Now()
	out = scrape.Outcome{
		BuildingID:   b.ID,
		BuildingName: b.Name,
		Platform:     b.Platform,
		ScrapedAt:    started,
	}
	defer func() {
		if r := recover(); r != nil {
			msg := scrape.TruncateError(fmt.Sprintf("panic: %v", r))
			o.logger.Error("scrape panicked",
				zap.Int64("building_id", b.ID), zap.String("building", b.Name), zap.Any("panic", r))
			out.Status = scrape.StatusFailed
			out.Err = msg
			if _, err := o.store.SaveResult(ctx, b.ID, scrape.Result{Err: msg, At: o.clock.Now()}); err != nil {
				o.logger.Error("save panic result failed", zap.Int64("building_id", b.ID), zap.Error(err))
			}
			o.record(b.Platform, scrape.StatusFailed, 0, started)
		}
	}()

	raws, err := o.extractor.Extract(ctx, b)
	res := scrape.Result{At: o.clock.Now()}
	if err != nil {
		res.Err = scrape.TruncateError(err.Error())
		o.logger.Warn("scrape failed",
			zap.Int64("building_id", b.ID), zap.String("building", b.Name),
			zap.String("platform", string(b.Platform)), zap.Error(err))
	} else {
		res.Succeeded = true
		res.Units = o.normalizeAll(b, raws, res.At)
	}

	status, err := o.store.SaveResult(ctx, b.ID, res)
	if err != nil {
		out.Status = scrape.StatusFailed
		out.Err = scrape.TruncateError(fmt.Sprintf("save result: %v", err))
		o.logger.Error("save result failed", zap.Int64("building_id", b.ID), zap.Error(err))
		o.record(b.Platform, scrape.StatusFailed, 0, started)
		return out
	}

	out.Status = status
	out.UnitCount = len(res.Units)
	out.Err = res.Err
	o.record(b.Platform, status, len(res.Units), started)

	if status == scrape.StatusNeedsAttention {
		o.logger.Warn("building needs attention: repeated zero-unit scrapes",
			zap.Int64("building_id", b.ID), zap.String("building", b.Name))
	}
	return out
}

// normalizeAll validates each raw record; a record that fails validation is
// dropped alone, never the whole result.
func (o *Orchestrator) normalizeAll(b scrape.Building, raws []scrape.RawUnit, at time.Time) []scrape.Unit {
	units := make([]scrape.Unit, 0, len(raws))
	for _, raw := range raws {
		u, err := normalize.Normalize(raw, b.ID, at)
		if err != nil {
			o.logger.Debug("dropping unnormalizable record",
				zap.Int64("building_id", b.ID), zap.Error(err))
			continue
		}
		units = append(units, u)
	}
	return units
}

func (o *Orchestrator) push(ctx context.Context, summary scrape.Summary) {
	if o.roster == nil {
		return
	}
	rows, err := o.store.ListAvailability(ctx)
	if err != nil {
		o.logger.Warn("availability snapshot load failed", zap.Error(err))
		return
	}
	if err := o.roster.Push(ctx, summary, rows); err != nil {
		o.logger.Warn("summary push failed", zap.Error(err))
	}
}

func (o *Orchestrator) record(p scrape.Platform, status scrape.Status, units int, started time.Time) {
	if o.recorder == nil {
		return
	}
	o.recorder.ScrapeCompleted(p, status, units, o.clock.Now().Sub(started))
}

func canceledOutcome(b scrape.Building, at time.Time) scrape.Outcome {
	return scrape.Outcome{
		BuildingID:   b.ID,
		BuildingName: b.Name,
		Platform:     b.Platform,
		Status:       scrape.StatusFailed,
		Err:          "run canceled before scrape started",
		ScrapedAt:    at,
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
