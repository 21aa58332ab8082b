// Package jobs contains the background job subsystem: the in-process job
// registry, the runner orchestrating fetch and export work, and the typed
// progress event stream.
package jobs

import (
	"errors"
	"time"

	"github.com/videosdk-community/usage-exporter/pkg/videosdk"
)

// Errors surfaced by status queries and downloads.
var (
	// ErrNotFound is returned for an unknown or already-delivered job id.
	ErrNotFound = errors.New("job not found")

	// ErrNotReady is returned when a download is requested before the job
	// has completed.
	ErrNotReady = errors.New("job not ready")
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Kind distinguishes fetch-only jobs from fetch+export jobs.
type Kind string

const (
	KindFetch  Kind = "fetch"
	KindExport Kind = "export"
)

// Step is the phase a running job is in.
type Step string

const (
	StepFetch    Step = "fetch"
	StepGenerate Step = "generate"
)

// Job is one unit of asynchronous work. It is owned exclusively by the
// registry; the running background task mutates it through Registry.Update
// and readers receive value copies.
type Job struct {
	ID          string             `json:"id"`
	Kind        Kind               `json:"kind"`
	Status      Status             `json:"status"`
	Step        Step               `json:"step,omitempty"`
	Progress    int                `json:"progress"`
	CurrentPage int                `json:"current_page,omitempty"`
	TotalPages  int                `json:"total_pages,omitempty"`
	Sessions    []videosdk.Session `json:"sessions,omitempty"`
	FilePath    string             `json:"-"`
	Filename    string             `json:"filename,omitempty"`
	Err         string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// advance raises the job's progress, never lowering it, and keeps running
// jobs below 100: only a completed job reads exactly 100.
func (j *Job) advance(progress int) {
	if j.Status == StatusRunning && progress > 99 {
		progress = 99
	}
	if progress > j.Progress {
		j.Progress = progress
	}
}
