// Package discover recovers per-building API credentials by watching the
// network traffic a building's own pages generate. The availability widget
// loads its credentials from a CDN bundle that 403s on direct fetch; the
// (property code, token) pair only ever appears as query parameters on the
// live API call, so request interception is the one reliable extraction
// path. This is an offline maintenance tool, not part of scheduled runs.
package discover

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rentpulse/rentpulse/internal/scrape"
	"github.com/rentpulse/rentpulse/internal/strategy/dom"
)

// ErrNotFound means no credential-bearing request was observed on any
// candidate page. A miss, not a failure: the building may simply not use
// the credentialed widget.
var ErrNotFound = errors.New("no credential-bearing request observed")

// Request URL markers of the credentialed availability API.
const (
	apiHost   = "api.rentcafe.com"
	apiScript = "rentcafeapi.aspx"
)

// Config controls the discovery sweep.
type Config struct {
	// CandidateTimeout bounds each candidate page visit.
	CandidateTimeout time.Duration
	// SettleDelay keeps the page open after DOM ready so the widget's
	// deferred API call can fire.
	SettleDelay time.Duration
}

// Discoverer drives a renderer with a request observer attached.
type Discoverer struct {
	renderer scrape.Renderer
	cfg      Config
	logger   *zap.Logger
}

// New builds a Discoverer.
func New(renderer scrape.Renderer, cfg Config, logger *zap.Logger) *Discoverer {
	if cfg.CandidateTimeout <= 0 {
		cfg.CandidateTimeout = 15 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{renderer: renderer, cfg: cfg, logger: logger}
}

// Discover visits candidate pages in priority order until a credential
// pair is observed: the building's declared deep link when a property code
// is already known, then the homepage, then the homepage's best-scored
// internal link. First match wins; each candidate gets a short timeout.
func (d *Discoverer) Discover(ctx context.Context, b scrape.Building) (scrape.Credentials, error) {
	if b.URL == "" {
		return scrape.Credentials{}, fmt.Errorf("building %d has no URL", b.ID)
	}

	if b.PropertyCode != "" {
		if creds, _, ok := d.visit(ctx, b, declaredDeepLink(b)); ok {
			return creds, nil
		}
	}

	creds, homepageHTML, ok := d.visit(ctx, b, b.URL)
	if ok {
		return creds, nil
	}

	if target := bestLink(homepageHTML, b.URL); target != "" {
		if creds, _, ok := d.visit(ctx, b, target); ok {
			return creds, nil
		}
	}
	return scrape.Credentials{}, ErrNotFound
}

// visit renders one candidate with the observer attached. Returns the
// credentials if the API call fired, plus the page HTML for link scoring.
func (d *Discoverer) visit(ctx context.Context, b scrape.Building, candidate string) (scrape.Credentials, string, bool) {
	visitCtx, cancel := context.WithTimeout(ctx, d.cfg.CandidateTimeout)
	defer cancel()

	obs := newObserver()
	res, err := d.renderer.Render(visitCtx, scrape.RenderRequest{
		URL:       candidate,
		Delay:     d.cfg.SettleDelay,
		OnRequest: obs.onRequest,
	})
	if err != nil {
		d.logger.Debug("candidate visit failed",
			zap.String("building", b.Name),
			zap.String("url", candidate),
			zap.Error(err),
		)
		return scrape.Credentials{}, "", false
	}

	creds, ok := obs.credentials()
	if ok {
		d.logger.Info("credentials discovered",
			zap.String("building", b.Name),
			zap.String("page", candidate),
			zap.String("property_code", creds.PropertyCode),
		)
	}
	return creds, res.HTML, ok
}

func bestLink(homepageHTML, base string) string {
	if homepageHTML == "" {
		return ""
	}
	doc, err := dom.Parse(homepageHTML)
	if err != nil {
		return ""
	}
	best, score := scrape.BestLink(dom.Links(doc, base))
	if score == 0 {
		return ""
	}
	return best.Href
}

// declaredDeepLink guesses the leasing portal deep link for a building
// whose property code is already partially known.
func declaredDeepLink(b scrape.Building) string {
	return fmt.Sprintf("https://%s.securecafe.com/onlineleasing/%s/availableunits.aspx",
		b.PropertyCode, b.PropertyCode)
}

// observer records the first credential-bearing request seen.
type observer struct {
	mu    sync.Mutex
	creds scrape.Credentials
	found bool
}

func newObserver() *observer {
	return &observer{}
}

// onRequest is called for every outgoing request the page issues.
func (o *observer) onRequest(requestURL string) {
	if !strings.Contains(requestURL, apiHost) || !strings.Contains(requestURL, apiScript) {
		return
	}
	creds, ok := ParseCredentialURL(requestURL)
	if !ok {
		return
	}
	o.mu.Lock()
	if !o.found {
		o.creds = creds
		o.found = true
	}
	o.mu.Unlock()
}

func (o *observer) credentials() (scrape.Credentials, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.creds, o.found
}

// ParseCredentialURL extracts the (property code, token) pair from an
// availability API request URL. The code parameter's casing varies across
// widget versions.
func ParseCredentialURL(requestURL string) (scrape.Credentials, bool) {
	parsed, err := url.Parse(requestURL)
	if err != nil {
		return scrape.Credentials{}, false
	}
	q := parsed.Query()
	token := q.Get("apiToken")
	code := q.Get("VoyagerPropertyCode")
	if code == "" {
		code = q.Get("propertyCode")
	}
	if code == "" {
		code = q.Get("PropertyCode")
	}
	if token == "" || code == "" {
		return scrape.Credentials{}, false
	}
	return scrape.Credentials{PropertyCode: code, APIToken: token}, true
}
