package jobs

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/videosdk-community/usage-exporter/pkg/export"
	"github.com/videosdk-community/usage-exporter/pkg/timerange"
	"github.com/videosdk-community/usage-exporter/pkg/videosdk"
)

// Prometheus metrics for job execution.
var (
	jobsStartedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_jobs_started_total",
		Help: "Total jobs started by kind",
	}, []string{"kind"})

	jobsFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usage_jobs_finished_total",
		Help: "Total jobs finished by kind and terminal status",
	}, []string{"kind", "status"})

	jobDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "usage_job_duration_seconds",
		Help:    "Job duration from start to terminal state by kind",
		Buckets: []float64{0.5, 1, 5, 15, 60, 300},
	}, []string{"kind"})

	activeJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "usage_jobs_active",
		Help: "Jobs currently tracked by the registry",
	})
)

// Fetcher retrieves all sessions for a time range. *videosdk.Client
// satisfies it.
type Fetcher interface {
	FetchAll(ctx context.Context, apiKey string, tr timerange.Range, onProgress videosdk.ProgressFunc) ([]videosdk.Session, error)
}

// Runner executes fetch and export work as background jobs, publishing all
// state transitions into the registry. A job, once started, runs to
// completion or failure; there is no cancellation API.
type Runner struct {
	registry *Registry
	fetcher  Fetcher
	tmpDir   string
	logger   zerolog.Logger
}

// NewRunner creates a runner. tmpDir receives export files; empty means
// the system temp dir.
func NewRunner(registry *Registry, fetcher Fetcher, tmpDir string) *Runner {
	return &Runner{
		registry: registry,
		fetcher:  fetcher,
		tmpDir:   tmpDir,
		logger:   log.With().Str("component", "job-runner").Logger(),
	}
}

// StartFetch spawns a background fetch job for the given month and returns
// its id immediately.
func (r *Runner) StartFetch(apiKey string, year, month int) (string, error) {
	tr, err := timerange.MonthRange(year, month)
	if err != nil {
		return "", err
	}

	job := r.newJob(KindFetch)
	go r.runFetch(job.ID, apiKey, tr)
	return job.ID, nil
}

// StartExport spawns a background fetch+export job and returns its id
// immediately. participantCols <= 0 means auto-detect.
func (r *Runner) StartExport(apiKey string, year, month, participantCols int) (string, error) {
	tr, err := timerange.MonthRange(year, month)
	if err != nil {
		return "", err
	}

	job := r.newJob(KindExport)
	go r.runExport(job.ID, apiKey, tr, participantCols, export.Filename(year, month))
	return job.ID, nil
}

// FetchStatus returns a snapshot of a fetch job. Terminal snapshots are
// delivered read-once: the registry entry is removed with the read.
func (r *Runner) FetchStatus(id string) (Job, error) {
	job, ok, removed := r.registry.Take(id, func(j Job) bool {
		return j.Status != StatusRunning
	})
	if !ok {
		return Job{}, ErrNotFound
	}
	if removed {
		activeJobs.Dec()
	}
	return job, nil
}

// ExportStatus returns a snapshot of an export job. An errored job is
// removed with the read; a completed job stays registered so its file can
// be downloaded.
func (r *Runner) ExportStatus(id string) (Job, error) {
	job, ok, removed := r.registry.Take(id, func(j Job) bool {
		return j.Status == StatusError
	})
	if !ok {
		return Job{}, ErrNotFound
	}
	if removed {
		activeJobs.Dec()
	}
	return job, nil
}

// Download hands back the export file path and suggested filename for a
// completed job and removes the job from the registry. The caller owns the
// file afterwards.
func (r *Runner) Download(id string) (path, filename string, err error) {
	job, ok, removed := r.registry.Take(id, func(j Job) bool {
		return j.Status == StatusCompleted && j.FilePath != ""
	})
	if !ok {
		return "", "", ErrNotFound
	}
	if !removed {
		return "", "", ErrNotReady
	}

	activeJobs.Dec()
	return job.FilePath, job.Filename, nil
}

// StreamFetch fetches the month while emitting typed events on the
// returned channel: Init, then Progress per page, then exactly one of
// Complete or Error, after which the channel is closed. The fetch stops
// early when ctx is cancelled.
func (r *Runner) StreamFetch(ctx context.Context, apiKey string, year, month int) (<-chan Event, error) {
	tr, err := timerange.MonthRange(year, month)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 1)
	go func() {
		defer close(events)

		send := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(Event{Type: EventInit}) {
			return
		}

		sessions, err := r.fetcher.FetchAll(ctx, apiKey, tr, func(current, total int) {
			send(Event{
				Type:        EventProgress,
				CurrentPage: current,
				TotalPages:  total,
				Progress:    pageProgress(current, total, 100),
			})
		})
		if err != nil {
			send(Event{Type: EventError, Err: err})
			return
		}

		send(Event{Type: EventComplete, Progress: 100, Sessions: sessions})
	}()

	return events, nil
}

// newJob registers a fresh running job.
func (r *Runner) newJob(kind Kind) *Job {
	job := &Job{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    StatusRunning,
		Step:      StepFetch,
		CreatedAt: time.Now(),
	}
	r.registry.Create(job)
	jobsStartedTotal.WithLabelValues(string(kind)).Inc()
	activeJobs.Inc()

	r.logger.Info().
		Str("job_id", job.ID).
		Str("kind", string(kind)).
		Msg("Job started")
	return job
}

// runFetch is the background task body for fetch-only jobs. Page progress
// maps onto the full 0-100 range.
func (r *Runner) runFetch(id, apiKey string, tr timerange.Range) {
	start := time.Now()

	sessions, err := r.fetcher.FetchAll(context.Background(), apiKey, tr, func(current, total int) {
		r.registry.Update(id, func(j *Job) {
			j.CurrentPage = current
			j.TotalPages = total
			j.advance(pageProgress(current, total, 100))
		})
	})
	if err != nil {
		r.fail(id, KindFetch, err, start)
		return
	}

	r.registry.Update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Progress = 100
		j.Sessions = sessions
	})
	r.finish(id, KindFetch, start)
}

// runExport is the background task body for fetch+export jobs. Fetch-page
// progress maps onto 0-50 and export-row progress onto 50-100.
func (r *Runner) runExport(id, apiKey string, tr timerange.Range, participantCols int, filename string) {
	start := time.Now()

	sessions, err := r.fetcher.FetchAll(context.Background(), apiKey, tr, func(current, total int) {
		r.registry.Update(id, func(j *Job) {
			j.CurrentPage = current
			j.TotalPages = total
			j.advance(pageProgress(current, total, 50))
		})
	})
	if err != nil {
		r.fail(id, KindExport, err, start)
		return
	}

	r.registry.Update(id, func(j *Job) {
		j.Step = StepGenerate
		j.advance(50)
	})

	cols := export.Columns(sessions, participantCols)
	path, err := export.WriteFile(r.tmpDir, sessions, cols, func(written, total int) {
		r.registry.Update(id, func(j *Job) {
			j.advance(50 + written*50/total)
		})
	})
	if err != nil {
		r.fail(id, KindExport, err, start)
		return
	}

	r.registry.Update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.Progress = 100
		j.FilePath = path
		j.Filename = filename
	})
	r.finish(id, KindExport, start)
}

// fail marks the job's terminal error state. Any partially written export
// file has already been removed by the exporter, so the registry never
// references a partial file.
func (r *Runner) fail(id string, kind Kind, err error, start time.Time) {
	r.registry.Update(id, func(j *Job) {
		j.Status = StatusError
		j.Err = err.Error()
	})

	jobsFinishedTotal.WithLabelValues(string(kind), string(StatusError)).Inc()
	jobDurationSeconds.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	r.logger.Error().
		Err(err).
		Str("job_id", id).
		Str("kind", string(kind)).
		Msg("Job failed")
}

func (r *Runner) finish(id string, kind Kind, start time.Time) {
	jobsFinishedTotal.WithLabelValues(string(kind), string(StatusCompleted)).Inc()
	jobDurationSeconds.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	r.logger.Info().
		Str("job_id", id).
		Str("kind", string(kind)).
		Dur("duration", time.Since(start)).
		Msg("Job completed")
}

// pageProgress maps page counters onto a 0-scale progress value.
func pageProgress(current, total, scale int) int {
	if total <= 0 {
		return 0
	}
	if current > total {
		current = total
	}
	return current * scale / total
}

// RemoveFile deletes a delivered export file, logging rather than failing
// on error. Used by the HTTP layer after streaming a download.
func RemoveFile(path string) {
	if err := os.Remove(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to remove export file")
	}
}
