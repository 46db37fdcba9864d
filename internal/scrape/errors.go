package scrape

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials means the building record has no API credential
// pair. It is surfaced as its own kind so operators know to run credential
// discovery rather than retry the scrape.
var ErrMissingCredentials = errors.New("building is missing platform credentials")

// ErrNoStrategy means the building's platform tag has no registered
// extraction strategy.
var ErrNoStrategy = errors.New("no strategy registered for platform")

// PlatformAPIError is an application-level error object embedded in an
// otherwise successful platform API response.
type PlatformAPIError struct {
	Platform Platform
	Code     string
}

func (e *PlatformAPIError) Error() string {
	return fmt.Sprintf("%s API error: %s", e.Platform, e.Code)
}

// TransportError is a transport or rendering failure: timeout, non-2xx
// status, or an empty render.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }
