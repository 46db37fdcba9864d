package discover

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

const credRequest = "https://api.rentcafe.com/rentcafeapi.aspx?" +
	"requestType=apartmentavailability&VoyagerPropertyCode=dey&apiToken=tok-123&showallunit=1"

// firingRenderer simulates pages that issue configured requests while
// loading.
type firingRenderer struct {
	pages    map[string]string   // URL -> HTML
	requests map[string][]string // URL -> outgoing requests fired during load
	visited  []string
}

func (r *firingRenderer) Render(_ context.Context, req scrape.RenderRequest) (scrape.RenderResult, error) {
	r.visited = append(r.visited, req.URL)
	html, ok := r.pages[req.URL]
	if !ok {
		return scrape.RenderResult{}, &scrape.TransportError{URL: req.URL, StatusCode: 404}
	}
	if req.OnRequest != nil {
		for _, fired := range r.requests[req.URL] {
			req.OnRequest(fired)
		}
	}
	return scrape.RenderResult{URL: req.URL, StatusCode: 200, HTML: html}, nil
}

func TestParseCredentialURL(t *testing.T) {
	creds, ok := ParseCredentialURL(credRequest)
	require.True(t, ok)
	assert.Equal(t, "dey", creds.PropertyCode)
	assert.Equal(t, "tok-123", creds.APIToken)

	// Alternate parameter casings.
	creds, ok = ParseCredentialURL("https://api.rentcafe.com/rentcafeapi.aspx?propertyCode=abc&apiToken=t")
	require.True(t, ok)
	assert.Equal(t, "abc", creds.PropertyCode)

	// Missing either half is a miss.
	_, ok = ParseCredentialURL("https://api.rentcafe.com/rentcafeapi.aspx?apiToken=t")
	assert.False(t, ok)
}

func TestDiscover_Homepage(t *testing.T) {
	r := &firingRenderer{
		pages:    map[string]string{"https://dey.example.com": "<html></html>"},
		requests: map[string][]string{"https://dey.example.com": {credRequest}},
	}
	d := New(r, Config{CandidateTimeout: time.Second}, nil)
	creds, err := d.Discover(context.Background(), scrape.Building{ID: 1, Name: "Dey", URL: "https://dey.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "dey", creds.PropertyCode)
	assert.Equal(t, "tok-123", creds.APIToken)
}

func TestDiscover_DeclaredDeepLinkFirst(t *testing.T) {
	deep := "https://dey.securecafe.com/onlineleasing/dey/availableunits.aspx"
	r := &firingRenderer{
		pages:    map[string]string{deep: "<html></html>"},
		requests: map[string][]string{deep: {credRequest}},
	}
	d := New(r, Config{}, nil)
	creds, err := d.Discover(context.Background(), scrape.Building{
		ID: 1, Name: "Dey", URL: "https://dey.example.com", PropertyCode: "dey",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-123", creds.APIToken)
	assert.Equal(t, []string{deep}, r.visited)
}

func TestDiscover_ScoredLinkFallback(t *testing.T) {
	homepage := `<body>
	  <a href="/gallery">Photo Gallery</a>
	  <a href="/availability">Check Availability &amp; Pricing</a>
	</body>`
	r := &firingRenderer{
		pages: map[string]string{
			"https://x.example.com":              homepage,
			"https://x.example.com/availability": "<html></html>",
		},
		requests: map[string][]string{
			"https://x.example.com/availability": {credRequest},
		},
	}
	d := New(r, Config{}, nil)
	creds, err := d.Discover(context.Background(), scrape.Building{ID: 2, Name: "X", URL: "https://x.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "dey", creds.PropertyCode)
	assert.Equal(t, []string{"https://x.example.com", "https://x.example.com/availability"}, r.visited)
}

func TestDiscover_Miss(t *testing.T) {
	r := &firingRenderer{
		pages: map[string]string{"https://plain.example.com": "<body><a href='/about'>About</a></body>"},
	}
	d := New(r, Config{}, nil)
	_, err := d.Discover(context.Background(), scrape.Building{ID: 3, Name: "Plain", URL: "https://plain.example.com"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiscover_IrrelevantRequestsIgnored(t *testing.T) {
	r := &firingRenderer{
		pages: map[string]string{"https://x.example.com": "<html></html>"},
		requests: map[string][]string{
			"https://x.example.com": {
				"https://cdn.example.com/app.js",
				"https://api.rentcafe.com/other.aspx?apiToken=t&VoyagerPropertyCode=c",
			},
		},
	}
	d := New(r, Config{}, nil)
	_, err := d.Discover(context.Background(), scrape.Building{ID: 4, Name: "X", URL: "https://x.example.com"})
	assert.ErrorIs(t, err, ErrNotFound)
}
