package api

import (
	"encoding/json"
	"net/http"

	"github.com/videosdk-community/usage-exporter/pkg/export"
	"github.com/videosdk-community/usage-exporter/pkg/jobs"
	"github.com/videosdk-community/usage-exporter/pkg/timerange"
)

// handleFetch is the synchronous variant: it blocks through the whole
// paginated fetch and returns the accumulated sessions.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	apiKey, year, month, err := monthParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	tr, err := timerange.MonthRange(year, month)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sessions, err := s.fetcher.FetchAll(r.Context(), apiKey, tr, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// handleGenerateCSV is the synchronous export: fetch, write the CSV to a
// temp file, and stream it back as an attachment.
func (s *Server) handleGenerateCSV(w http.ResponseWriter, r *http.Request) {
	apiKey, year, month, err := monthParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	cols, err := participantColumns(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	tr, err := timerange.MonthRange(year, month)
	if err != nil {
		s.writeError(w, err)
		return
	}

	sessions, err := s.fetcher.FetchAll(r.Context(), apiKey, tr, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}

	path, err := export.WriteFile(s.tmpDir, sessions, export.Columns(sessions, cols), nil)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer jobs.RemoveFile(path)

	s.serveCSV(w, r, path, export.Filename(year, month))
}

func (s *Server) handleStartFetchJob(w http.ResponseWriter, r *http.Request) {
	apiKey, year, month, err := monthParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	id, err := s.runner.StartFetch(apiKey, year, month)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

func (s *Server) handleFetchJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.runner.FetchStatus(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleStartExportJob(w http.ResponseWriter, r *http.Request) {
	apiKey, year, month, err := monthParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	cols, err := participantColumns(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	id, err := s.runner.StartExport(apiKey, year, month, cols)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

func (s *Server) handleExportJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.runner.ExportStatus(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, job)
}

// handleDownloadExport delivers the produced file once, removing both the
// job and the temp file.
func (s *Server) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	path, filename, err := s.runner.Download(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer jobs.RemoveFile(path)

	s.serveCSV(w, r, path, filename)
}

// handleFetchStream emits the typed fetch events as server-sent events.
// Error is terminal and closes the stream.
func (s *Server) handleFetchStream(w http.ResponseWriter, r *http.Request) {
	apiKey, year, month, err := monthParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, err := s.runner.StreamFetch(r.Context(), apiKey, year, month)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for ev := range events {
		var payload any = ev
		if ev.Type == jobs.EventError {
			payload = map[string]string{
				"type":  string(jobs.EventError),
				"error": ev.Err.Error(),
			}
		}

		if _, err := w.Write([]byte("data: ")); err != nil {
			return
		}
		if err := enc.Encode(payload); err != nil {
			return
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}

// serveCSV streams a produced CSV file as an attachment.
func (s *Server) serveCSV(w http.ResponseWriter, r *http.Request, path, filename string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	http.ServeFile(w, r, path)
}
