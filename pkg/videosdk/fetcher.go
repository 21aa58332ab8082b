package videosdk

import (
	"context"
	"time"

	"github.com/videosdk-community/usage-exporter/pkg/timerange"
)

// ProgressFunc is invoked after each processed page with the page just
// completed and the latched total page count.
type ProgressFunc func(currentPage, totalPages int)

// FetchAll retrieves every session in the given range, walking the
// paginated endpoint from page 1 until currentPage reaches lastPage. The
// total page count is latched from the first response for progress
// reporting. A fixed delay separates consecutive page requests.
//
// Any non-success response aborts the whole fetch with an *UpstreamError;
// already-accumulated records are discarded. A fully empty result fails
// with ErrNoData.
func (c *Client) FetchAll(ctx context.Context, apiKey string, tr timerange.Range, onProgress ProgressFunc) ([]Session, error) {
	var sessions []Session
	totalPages := 0

	for page := 1; ; page++ {
		envelope, err := c.fetchPage(ctx, apiKey, tr, page)
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, envelope.Data...)

		current, last := envelope.pagination()
		if totalPages == 0 {
			totalPages = last
		}

		c.logger.Debug().
			Int("page", current).
			Int("total_pages", totalPages).
			Int("sessions", len(sessions)).
			Msg("Fetched sessions page")

		if onProgress != nil {
			onProgress(current, totalPages)
		}

		if current >= last {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.config.PageDelay):
		}
	}

	if len(sessions) == 0 {
		return nil, ErrNoData
	}

	sessionsFetchedTotal.Add(float64(len(sessions)))
	c.logger.Info().
		Int("sessions", len(sessions)).
		Int("pages", totalPages).
		Msg("Session fetch complete")

	return sessions, nil
}
