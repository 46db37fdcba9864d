// Package classify tags buildings with a platform using URL patterns and,
// for custom domains, rendered-page content signatures. Both stages fill
// blanks only; an operator-provided platform always wins.
package classify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

// urlPattern pairs a platform with a hostname substring. The table is
// ordered most-specific first; the first match wins.
type urlPattern struct {
	platform scrape.Platform
	host     string
}

var urlPatterns = []urlPattern{
	{scrape.PlatformRentCafe, "rentcafe.com"},
	{scrape.PlatformPPM, "ppmapartments.com"},
	{scrape.PlatformFunnel, "nestiolistings.com"},
	{scrape.PlatformFunnel, "funnelleasing.com"},
	{scrape.PlatformRealPage, "realpage.com"},
	{scrape.PlatformRealPage, "g5searchmarketing.com"},
	{scrape.PlatformBozzuto, "bozzuto.com"},
	{scrape.PlatformGroupfox, "groupfox.com"},
	{scrape.PlatformAppFolio, "appfolio.com"},
}

// ByURL classifies a building from its hostname alone. No network access.
// A miss leaves the platform unset for the signature stage or manual
// review.
func ByURL(rawURL string) (scrape.Platform, bool) {
	if rawURL == "" {
		return "", false
	}
	parsed, err := url.Parse(strings.ToLower(rawURL))
	if err != nil {
		return "", false
	}
	hostname := parsed.Host
	if hostname == "" {
		hostname = parsed.Path
	}
	for _, p := range urlPatterns {
		if strings.Contains(hostname, p.host) {
			return p.platform, true
		}
	}
	return "", false
}

// signatureSet is the ordered content-signature table: literal substrings
// (script hosts, CDN domains, branded JS variables) checked
// case-insensitively against the rendered document. Platforms are checked
// in order; the first platform with any matching signature wins.
type signatureSet struct {
	platform   scrape.Platform
	signatures []string
}

var signatureSets = []signatureSet{
	{scrape.PlatformRentCafe, []string{"rentcafeapi.aspx", "securecafe.com", "rentcafe.com", "voyagerpropertycode"}},
	{scrape.PlatformPPM, []string{"ppmapartments.com"}},
	{scrape.PlatformEntrata, []string{"entratacdn.com", "myentrata.com", "entrata.com"}},
	{scrape.PlatformAppFolio, []string{"appfolioproperty.com", "appfolio.com"}},
	{scrape.PlatformRealPage, []string{"realpage.com", "g5searchmarketing.com", "leasingdesk.com"}},
	{scrape.PlatformFunnel, []string{"nestiolistings.com", "funnelleasing.com"}},
	{scrape.PlatformBozzuto, []string{"bozzuto.com"}},
	{scrape.PlatformGroupfox, []string{"groupfox.com"}},
	{scrape.PlatformMRI, []string{"residentportal.com", "mrisoftware.com", "mri software"}},
}

// Detection is the outcome of a content-signature probe, kept for operator
// review of which substrings matched.
type Detection struct {
	Platform scrape.Platform
	Matched  []string
}

// BySignatureHTML scans already-rendered HTML for platform signatures.
// A miss yields the needs_classification sentinel.
func BySignatureHTML(html string) Detection {
	lower := strings.ToLower(html)
	for _, set := range signatureSets {
		var matched []string
		for _, sig := range set.signatures {
			if strings.Contains(lower, sig) {
				matched = append(matched, sig)
			}
		}
		if len(matched) > 0 {
			return Detection{Platform: set.platform, Matched: matched}
		}
	}
	return Detection{Platform: scrape.PlatformNeedsClassification}
}

// Classifier runs the two-stage classification. Stage 2 needs a rendered
// page because the signatures live in injected script tags.
type Classifier struct {
	renderer scrape.Renderer
	logger   *zap.Logger
}

// New builds a Classifier.
func New(renderer scrape.Renderer, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{renderer: renderer, logger: logger}
}

// Classify resolves a platform for a building. Precedence: the operator
// override, then the URL-pattern stage, then the content-signature stage.
// Buildings that already carry a platform are returned unchanged.
func (c *Classifier) Classify(ctx context.Context, b scrape.Building, override scrape.Platform) (Detection, error) {
	if override != "" {
		return Detection{Platform: override}, nil
	}
	if b.Platform != "" && b.Platform != scrape.PlatformNeedsClassification {
		return Detection{Platform: b.Platform}, nil
	}
	if platform, ok := ByURL(b.URL); ok {
		return Detection{Platform: platform}, nil
	}
	if c.renderer == nil {
		return Detection{Platform: scrape.PlatformNeedsClassification}, nil
	}

	res, err := c.renderer.Render(ctx, scrape.RenderRequest{URL: b.URL})
	if err != nil {
		return Detection{}, fmt.Errorf("render %s for signature probe: %w", b.URL, err)
	}
	if res.HTML == "" {
		return Detection{}, &scrape.TransportError{URL: b.URL, Err: fmt.Errorf("empty render")}
	}

	det := BySignatureHTML(res.HTML)
	if det.Platform == scrape.PlatformNeedsClassification {
		c.logger.Info("no platform signatures found",
			zap.String("building", b.Name),
			zap.String("url", b.URL),
		)
	} else {
		c.logger.Info("platform detected from signatures",
			zap.String("building", b.Name),
			zap.String("platform", string(det.Platform)),
			zap.Strings("matched", det.Matched),
		)
	}
	return det, nil
}
