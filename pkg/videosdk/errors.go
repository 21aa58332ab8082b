package videosdk

import (
	"errors"
	"fmt"
)

// ErrNoData is returned when the upstream API reports zero sessions for the
// requested range.
var ErrNoData = errors.New("no sessions found")

// UpstreamError represents a non-success response from the sessions API.
// The status code and raw body are surfaced verbatim to the caller.
type UpstreamError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("videosdk upstream error (status %d): %s", e.StatusCode, e.Body)
}
