package videosdk

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Raw is a scalar field kept exactly as upstream provided it. The sessions
// API is loose about scalar types (timestamps arrive as strings on some
// accounts and as epoch numbers on others), so Raw accepts either and
// preserves the original text for comparison and export.
type Raw string

// UnmarshalJSON implements json.Unmarshaler.
func (r *Raw) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = Raw(s)
		return nil
	}

	trimmed := bytes.TrimSpace(b)
	if string(trimmed) == "null" {
		*r = ""
		return nil
	}

	*r = Raw(trimmed)
	return nil
}

// Less orders two Raw values: numerically when both parse as numbers,
// lexically otherwise.
func (r Raw) Less(other Raw) bool {
	a, errA := strconv.ParseFloat(string(r), 64)
	b, errB := strconv.ParseFloat(string(other), 64)
	if errA == nil && errB == nil {
		return a < b
	}
	return string(r) < string(other)
}

// TimelogEntry is one join/leave interval of a participant.
type TimelogEntry struct {
	Start Raw `json:"start"`
	End   Raw `json:"end"`
}

// Participant is one attendee record within a session.
type Participant struct {
	ParticipantID string         `json:"participantId"`
	Name          string         `json:"name"`
	Timelog       []TimelogEntry `json:"timelog"`
}

// Session is one recorded room-usage instance. All fields are optional on
// the wire; absent fields decode to their zero values.
type Session struct {
	ID           string        `json:"id"`
	RoomID       string        `json:"roomId"`
	Start        Raw           `json:"start"`
	End          Raw           `json:"end"`
	Status       string        `json:"status"`
	Participants []Participant `json:"participants"`
}

// PageInfo is the pagination envelope returned alongside each page.
type PageInfo struct {
	CurrentPage int `json:"currentPage"`
	LastPage    int `json:"lastPage"`
}

// sessionsPage is the response body of the sessions endpoint.
type sessionsPage struct {
	Data     []Session `json:"data"`
	PageInfo *PageInfo `json:"pageInfo"`
}

// pagination returns currentPage and lastPage, both defaulting to 1 when
// the envelope or a field is absent.
func (p *sessionsPage) pagination() (current, last int) {
	current, last = 1, 1
	if p.PageInfo == nil {
		return current, last
	}
	if p.PageInfo.CurrentPage > 0 {
		current = p.PageInfo.CurrentPage
	}
	if p.PageInfo.LastPage > 0 {
		last = p.PageInfo.LastPage
	}
	return current, last
}
