// Package restapi extracts units through credentialed platform REST APIs.
// The RentCafe/Yardi availability endpoint is the only credentialed API in
// production; it needs a per-building (VoyagerPropertyCode, apiToken) pair.
package restapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

// DefaultRentCafeBase is the production availability endpoint.
const DefaultRentCafeBase = "https://api.rentcafe.com/rentcafeapi.aspx"

// rentCafeUnit mirrors the documented apartmentavailability response
// fields. AvailableDate is empty for occupied units.
type rentCafeUnit struct {
	ApartmentName string `json:"ApartmentName"`
	FloorplanName string `json:"FloorplanName"`
	Beds          any    `json:"Beds"`
	Baths         any    `json:"Baths"`
	SQFT          any    `json:"SQFT"`
	MinimumRent   string `json:"MinimumRent"`
	MaximumRent   string `json:"MaximumRent"`
	AvailableDate string `json:"AvailableDate"`
	Error         string `json:"Error"`
}

// RentCafe scrapes buildings through the RentCafe availability API.
type RentCafe struct {
	client  *resty.Client
	baseURL string
	logger  *zap.Logger
}

// NewRentCafe builds the RentCafe API strategy. baseURL overrides the
// production endpoint for tests.
func NewRentCafe(baseURL string, logger *zap.Logger) *RentCafe {
	if baseURL == "" {
		baseURL = DefaultRentCafeBase
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)
	return &RentCafe{client: client, baseURL: baseURL, logger: logger}
}

// Extract calls the availability endpoint and maps available units.
// Failure modes are distinct error kinds: missing credentials, an error
// object embedded in a 200 body, and transport/HTTP failures.
func (r *RentCafe) Extract(ctx context.Context, b scrape.Building) ([]scrape.RawUnit, error) {
	if !b.HasCredentials() {
		return nil, fmt.Errorf("building %d (%s): %w", b.ID, b.Name, scrape.ErrMissingCredentials)
	}

	// Tokens captured from browser traffic may be stored URL-encoded.
	token := b.APIToken
	if decoded, err := url.QueryUnescape(token); err == nil {
		token = decoded
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"requestType":         "apartmentavailability",
			"VoyagerPropertyCode": b.PropertyCode,
			"apiToken":            token,
			"showallunit":         "1",
		}).
		Get(r.baseURL)
	if err != nil {
		return nil, &scrape.TransportError{URL: r.baseURL, Err: err}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, &scrape.TransportError{URL: r.baseURL, StatusCode: resp.StatusCode()}
	}

	var payload []rentCafeUnit
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, &scrape.TransportError{URL: r.baseURL, Err: fmt.Errorf("decode response: %w", err)}
	}

	// Invalid credentials come back as a 200 with [{"Error": "1020"}].
	if len(payload) > 0 && payload[0].Error != "" {
		return nil, &scrape.PlatformAPIError{Platform: scrape.PlatformRentCafe, Code: payload[0].Error}
	}

	units := make([]scrape.RawUnit, 0, len(payload))
	for _, item := range payload {
		if item.AvailableDate == "" {
			continue // occupied or not actively listed
		}
		units = append(units, mapRentCafeUnit(item))
	}
	r.logger.Debug("rentcafe extraction",
		zap.String("building", b.Name),
		zap.Int("listed", len(payload)),
		zap.Int("available", len(units)),
	)
	return units, nil
}

func mapRentCafeUnit(item rentCafeUnit) scrape.RawUnit {
	rent := item.MinimumRent
	if rent == "" {
		rent = item.MaximumRent
	}
	unit := scrape.RawUnit{
		scrape.KeyUnitNumber:       item.ApartmentName,
		scrape.KeyBedType:          numericString(item.Beds),
		scrape.KeyRent:             rent,
		scrape.KeyAvailabilityDate: item.AvailableDate,
	}
	if item.FloorplanName != "" {
		unit[scrape.KeyFloorPlanName] = item.FloorplanName
	}
	if baths := numericString(item.Baths); baths != "" {
		unit[scrape.KeyBaths] = baths
	}
	if item.SQFT != nil {
		unit[scrape.KeySqft] = item.SQFT
	}
	return unit
}

// numericString renders the API's loosely typed numeric fields (integers
// in some responses, strings in others) as strings for the normalizer.
func numericString(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%g", n)
	default:
		return fmt.Sprint(v)
	}
}
