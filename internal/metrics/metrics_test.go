package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

func TestScrapeCompleted(t *testing.T) {
	m := New()
	m.ScrapeCompleted(scrape.PlatformRentCafe, scrape.StatusSuccess, 12, 800*time.Millisecond)
	m.ScrapeCompleted(scrape.PlatformRentCafe, scrape.StatusFailed, 0, 2*time.Second)
	m.ScrapeCompleted(scrape.PlatformGroupfox, scrape.StatusSuccess, 3, time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.scrapesTotal.WithLabelValues("rentcafe", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.scrapesTotal.WithLabelValues("rentcafe", "failed")))
	assert.Equal(t, float64(12), testutil.ToFloat64(
		m.unitsExtracted.WithLabelValues("rentcafe")))
	assert.Equal(t, float64(3), testutil.ToFloat64(
		m.unitsExtracted.WithLabelValues("groupfox")))
}

func TestBatchCompleted(t *testing.T) {
	m := New()
	start := time.Now()
	m.BatchCompleted(scrape.Summary{StartedAt: start, FinishedAt: start.Add(time.Minute)})
	assert.Equal(t, float64(1), testutil.ToFloat64(m.batchRunsTotal))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.ScrapeCompleted(scrape.PlatformPPM, scrape.StatusSuccess, 1, time.Second)
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "rentpulse_scrapes_total")
	assert.Contains(t, names, "rentpulse_scrape_duration_seconds")
}
