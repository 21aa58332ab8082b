// Package videosdk provides the client for the VideoSDK sessions API,
// including paginated retrieval of a full month of session-usage records.
package videosdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/videosdk-community/usage-exporter/pkg/timerange"
)

// Prometheus metrics for upstream API operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videosdk_requests_total",
		Help: "Total requests to the sessions API by HTTP status",
	}, []string{"status"})

	upstreamRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "videosdk_request_duration_seconds",
		Help:    "Sessions API request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videosdk_pages_fetched_total",
		Help: "Total pages fetched from the sessions API",
	})

	sessionsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videosdk_sessions_fetched_total",
		Help: "Total session records fetched from the sessions API",
	})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, without the trailing /sessions/ path.
	BaseURL string

	// PerPage is the fixed page size sent with every request.
	PerPage int

	// PageDelay is the fixed pause between consecutive page requests.
	PageDelay time.Duration

	// Timeout applies to each individual HTTP request.
	Timeout time.Duration
}

// DefaultConfig returns the configuration matching the production API.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "https://api.videosdk.live/v2",
		PerPage:   20,
		PageDelay: 200 * time.Millisecond,
		Timeout:   30 * time.Second,
	}
}

// Client is the sessions API client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new sessions API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	if cfg.PerPage <= 0 {
		return nil, fmt.Errorf("per-page must be positive (got %d)", cfg.PerPage)
	}

	if cfg.PageDelay < 0 {
		return nil, fmt.Errorf("page delay must not be negative (got %s)", cfg.PageDelay)
	}

	logger := log.With().Str("component", "videosdk-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// fetchPage requests a single page of sessions for the given range.
func (c *Client) fetchPage(ctx context.Context, apiKey string, tr timerange.Range, page int) (*sessionsPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("perPage", strconv.Itoa(c.config.PerPage))
	q.Set("startDate", strconv.FormatInt(tr.StartMs, 10))
	q.Set("endDate", strconv.FormatInt(tr.EndMs, 10))

	reqURL := c.config.BaseURL + "/sessions/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	upstreamRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		upstreamRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, fmt.Errorf("sessions request: %w", err)
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Int("page", page).
			Msg("Sessions API error")
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var envelope sessionsPage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode sessions page %d: %w", page, err)
	}

	pagesFetchedTotal.Inc()
	return &envelope, nil
}
