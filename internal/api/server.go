// Package api exposes the usage exporter's HTTP boundary: synchronous
// fetch/export endpoints, the background-job endpoints, and operational
// routes. The handlers are thin plumbing over pkg/jobs and pkg/videosdk.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/videosdk-community/usage-exporter/pkg/jobs"
	"github.com/videosdk-community/usage-exporter/pkg/timerange"
	"github.com/videosdk-community/usage-exporter/pkg/videosdk"
)

// ErrInvalidInput marks malformed request parameters.
var ErrInvalidInput = errors.New("invalid input")

// Server is the HTTP boundary of the exporter.
type Server struct {
	mux     *http.ServeMux
	runner  *jobs.Runner
	fetcher jobs.Fetcher
	tmpDir  string
	logger  zerolog.Logger
}

// NewServer wires the routes over the given runner and fetcher. tmpDir
// receives files produced by the synchronous CSV endpoint.
func NewServer(runner *jobs.Runner, fetcher jobs.Fetcher, tmpDir string) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		runner:  runner,
		fetcher: fetcher,
		tmpDir:  tmpDir,
		logger:  log.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /fetch", s.handleFetch)
	s.mux.HandleFunc("GET /fetch/stream", s.handleFetchStream)
	s.mux.HandleFunc("GET /generate-csv", s.handleGenerateCSV)

	s.mux.HandleFunc("POST /jobs/fetch", s.handleStartFetchJob)
	s.mux.HandleFunc("GET /jobs/fetch/{id}", s.handleFetchJobStatus)
	s.mux.HandleFunc("POST /jobs/export", s.handleStartExportJob)
	s.mux.HandleFunc("GET /jobs/export/{id}", s.handleExportJobStatus)
	s.mux.HandleFunc("GET /jobs/export/{id}/download", s.handleDownloadExport)
}

// ServeHTTP implements http.Handler, applying permissive CORS to every
// route.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "*")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps domain errors onto structured JSON error payloads,
// passing the upstream's status code through where one is known.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var upstream *videosdk.UpstreamError

	status := http.StatusInternalServerError
	message := err.Error()

	switch {
	case errors.As(err, &upstream):
		status = upstream.StatusCode
		message = upstream.Body
	case errors.Is(err, videosdk.ErrNoData):
		status = http.StatusNotFound
	case errors.Is(err, jobs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, jobs.ErrNotReady):
		status = http.StatusConflict
	case errors.Is(err, timerange.ErrInvalidMonth), errors.Is(err, ErrInvalidInput):
		status = http.StatusBadRequest
	}

	s.writeJSON(w, status, map[string]string{"error": message})
}

// monthParams parses and validates the api_key, year, and month query
// parameters shared by every fetch/export route.
func monthParams(r *http.Request) (apiKey string, year, month int, err error) {
	apiKey = r.URL.Query().Get("api_key")
	if apiKey == "" {
		return "", 0, 0, fmt.Errorf("%w: api_key is required", ErrInvalidInput)
	}

	year, err = queryInt(r, "year")
	if err != nil {
		return "", 0, 0, err
	}

	month, err = queryInt(r, "month")
	if err != nil {
		return "", 0, 0, err
	}

	return apiKey, year, month, nil
}

// queryInt parses a required integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidInput, name)
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer (got %q)", ErrInvalidInput, name, raw)
	}
	return value, nil
}

// participantColumns parses the optional participant_columns parameter.
// Absent means auto-detect; negative values clamp to zero.
func participantColumns(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("participant_columns")
	if raw == "" {
		return 0, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: participant_columns must be an integer (got %q)", ErrInvalidInput, raw)
	}
	if value < 0 {
		return 0, nil
	}
	return value, nil
}
