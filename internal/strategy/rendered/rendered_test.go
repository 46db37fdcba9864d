package rendered

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

// pageRenderer serves canned HTML per URL.
type pageRenderer struct {
	pages    map[string]string
	rendered []string
}

func (r *pageRenderer) Render(_ context.Context, req scrape.RenderRequest) (scrape.RenderResult, error) {
	r.rendered = append(r.rendered, req.URL)
	html, ok := r.pages[req.URL]
	if !ok {
		return scrape.RenderResult{}, &scrape.TransportError{URL: req.URL, StatusCode: 404}
	}
	return scrape.RenderResult{URL: req.URL, StatusCode: 200, HTML: html}, nil
}

const landingHTML = `<div class="available-unit">
  <span class="unit-number">501</span>
  <span class="bedrooms">1 Bed</span>
  <span class="price">$2,400</span>
  <span class="availability">Available Now</span>
</div>`

func TestExtract_LandingPage(t *testing.T) {
	r := &pageRenderer{pages: map[string]string{"https://x.com": landingHTML}}
	s := New(r, Config{}, nil)
	units, err := s.Extract(context.Background(), scrape.Building{URL: "https://x.com"})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "501", units[0][scrape.KeyUnitNumber])
}

func TestExtract_ScoredLinkFallback(t *testing.T) {
	landing := `<body>
	  <a href="/about">About Us</a>
	  <a href="/floorplans">Floor Plans &amp; Pricing</a>
	</body>`
	r := &pageRenderer{pages: map[string]string{
		"https://x.com":            landing,
		"https://x.com/floorplans": landingHTML,
	}}
	s := New(r, Config{ScoreLinks: true}, nil)
	units, err := s.Extract(context.Background(), scrape.Building{URL: "https://x.com"})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, []string{"https://x.com", "https://x.com/floorplans"}, r.rendered)
}

const planIndexHTML = `<body>
<div class="card text-center">
  <h2 class="card-title">S1</h2>
  <ul class="list-inline">
    <li class="list-inline-item">Studio</li>
    <li class="list-inline-item">1 Bath</li>
  </ul>
  <a class="floorplan-action-button" href="/floorplans/s1">Availability</a>
</div>
<div class="card text-center">
  <h2 class="card-title">A2</h2>
  <ul class="list-inline">
    <li class="list-inline-item">1 Bed</li>
    <li class="list-inline-item">1 Bath</li>
  </ul>
  <a class="floorplan-action-button" href="#">Contact Us</a>
</div>
</body>`

const planUnitsHTML = `<table><tbody>
<tr class="unit-container">
  <td class="td-card-name">Apartment:#4414307</td>
  <td class="td-card-rent">Rent:$1,750</td>
  <td class="td-card-available">Date:4/15/2026</td>
</tr>
<tr class="unit-container">
  <td class="td-card-name">Apartment:#4414308</td>
  <td class="td-card-rent">Rent:$1,795</td>
  <td class="td-card-available"></td>
</tr>
</tbody></table>`

func TestExtract_FloorPlanWalk(t *testing.T) {
	r := &pageRenderer{pages: map[string]string{
		"https://axis.example.com/floorplans":    planIndexHTML,
		"https://axis.example.com/floorplans/s1": planUnitsHTML,
	}}
	s := New(r, Config{Subpath: "/floorplans", FollowPlanPages: true}, nil)
	units, err := s.Extract(context.Background(), scrape.Building{
		Name: "Axis",
		URL:  "https://axis.example.com",
	})
	require.NoError(t, err)
	require.Len(t, units, 2)

	assert.Equal(t, "4414307", units[0][scrape.KeyUnitNumber])
	assert.Equal(t, "Studio", units[0][scrape.KeyBedType])
	assert.Equal(t, "$1,750", units[0][scrape.KeyRent])
	assert.Equal(t, "4/15/2026", units[0][scrape.KeyAvailabilityDate])
	assert.Equal(t, "S1", units[0][scrape.KeyFloorPlanName])
	assert.Equal(t, "1 Bath", units[0][scrape.KeyBaths])

	// Empty availability cell defaults to now.
	assert.Equal(t, "Available Now", units[1][scrape.KeyAvailabilityDate])

	// The "Contact Us" plan is never visited.
	assert.Len(t, r.rendered, 2)
}

func TestExtract_EmptyPlanIndexIsZeroUnits(t *testing.T) {
	r := &pageRenderer{pages: map[string]string{
		"https://axis.example.com/floorplans": "<body><p>nothing listed</p></body>",
	}}
	s := New(r, Config{Subpath: "/floorplans", FollowPlanPages: true}, nil)
	units, err := s.Extract(context.Background(), scrape.Building{URL: "https://axis.example.com"})
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestExtract_RenderFailurePropagates(t *testing.T) {
	r := &pageRenderer{pages: map[string]string{}}
	s := New(r, Config{}, nil)
	_, err := s.Extract(context.Background(), scrape.Building{URL: "https://down.example.com"})
	var terr *scrape.TransportError
	require.ErrorAs(t, err, &terr)
}

func TestWithSubpath(t *testing.T) {
	assert.Equal(t, "https://x.com/floorplans", withSubpath("https://x.com", "/floorplans"))
	assert.Equal(t, "https://x.com/floorplans", withSubpath("https://x.com/", "/floorplans"))
	assert.Equal(t, "https://x.com/floorplans", withSubpath("https://x.com/floorplans", "/floorplans"))
	assert.Equal(t, "https://x.com/floorplans/studio", withSubpath("https://x.com/floorplans/studio", "/floorplans"))
	assert.Equal(t, "https://x.com/floorplans", withSubpath("https://x.com/amenities", "/floorplans"))
}
