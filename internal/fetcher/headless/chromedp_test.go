package headless

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxParallel: -1})
	require.Error(t, err)

	r, err := New(Config{MaxParallel: 2})
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, 2, cap(r.limiter))
	assert.Equal(t, 45*time.Second, r.cfg.NavigationTimeout)
	assert.Equal(t, 500*time.Millisecond, r.cfg.SettleDelay)
}

func TestAcquire_CanceledContext(t *testing.T) {
	t.Parallel()

	r, err := New(Config{MaxParallel: 1})
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.acquire(context.Background()))
	defer r.release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = r.acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResponseMeta_Fallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()

	// Nothing captured: default status, request URL.
	status, url := meta.snapshotWithFallbacks("https://req.example.com", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, "https://req.example.com", url)

	// Final location beats the request URL.
	_, url = meta.snapshotWithFallbacks("https://req.example.com", "https://final.example.com")
	assert.Equal(t, "https://final.example.com", url)

	// A captured document response beats both.
	meta.capture(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 404, URL: "https://doc.example.com"},
	})
	status, url = meta.snapshotWithFallbacks("https://req.example.com", "https://final.example.com")
	assert.Equal(t, 404, status)
	assert.Equal(t, "https://doc.example.com", url)
}

func TestResponseMeta_IgnoresSubresources(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.capture(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 500, URL: "https://cdn.example.com/app.js"},
	})
	status, _ := meta.snapshotWithFallbacks("https://req.example.com", "")
	assert.Equal(t, 200, status)
}

func TestNoop_Render(t *testing.T) {
	t.Parallel()

	_, err := NewNoop().Render(context.Background(), scrape.RenderRequest{URL: "https://x.example.com"})
	require.Error(t, err)
}
