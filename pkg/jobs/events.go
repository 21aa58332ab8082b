package jobs

import "github.com/videosdk-community/usage-exporter/pkg/videosdk"

// EventType classifies a progress event on a job stream.
type EventType string

const (
	// EventInit opens a stream, before any page has been fetched.
	EventInit EventType = "init"

	// EventProgress reports one processed page.
	EventProgress EventType = "progress"

	// EventComplete is terminal and carries the accumulated sessions.
	EventComplete EventType = "complete"

	// EventError is terminal and carries the failure.
	EventError EventType = "error"
)

// Event is one element of a streamed fetch. Error and Complete are
// terminal: the channel is closed after either.
type Event struct {
	Type        EventType          `json:"type"`
	CurrentPage int                `json:"current_page,omitempty"`
	TotalPages  int                `json:"total_pages,omitempty"`
	Progress    int                `json:"progress"`
	Sessions    []videosdk.Session `json:"sessions,omitempty"`
	Err         error              `json:"-"`
}
