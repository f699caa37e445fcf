package google

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ErrAPI is returned when a People or Gmail API call fails.
var ErrAPI = errors.New("google API error")

// WrapAPIError tags err with ErrAPI. The wrapped error stays reachable with
// errors.As, so callers can still inspect a *googleapi.Error.
func WrapAPIError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrAPI, operation, err)
}

// IsNotFound reports whether err carries an HTTP 404 from the API.
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// IsRateLimited reports whether err carries an HTTP 429 from the API.
func IsRateLimited(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests
}
