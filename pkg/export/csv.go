// Package export turns accumulated session records into the wide per-month
// usage CSV, with four columns per participant slot.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/videosdk-community/usage-exporter/pkg/videosdk"
)

var (
	exportRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usage_export_rows_total",
		Help: "Total CSV rows written across all exports",
	})

	exportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usage_exports_total",
		Help: "Total completed CSV exports",
	})
)

// RowFunc is invoked as rows are written, at least every 10 rows and on
// the final row.
type RowFunc func(written, total int)

// Columns resolves the participant column count for an export: the desired
// count when positive, otherwise the maximum participant count observed
// across all sessions.
func Columns(sessions []videosdk.Session, desired int) int {
	if desired > 0 {
		return desired
	}

	max := 0
	for _, s := range sessions {
		if len(s.Participants) > max {
			max = len(s.Participants)
		}
	}
	return max
}

// Filename returns the suggested download name for a monthly export.
func Filename(year, month int) string {
	return fmt.Sprintf("usage_%d_%d.csv", year, month)
}

// Write streams the sessions as CSV rows to w, one row per session in
// input order. participantCols fixes the number of participant column
// groups; sessions with more participants are truncated to it and sessions
// with fewer get empty slots.
func Write(w io.Writer, sessions []videosdk.Session, participantCols int, onRow RowFunc) error {
	cw := csv.NewWriter(w)

	header := []string{
		"session_id", "room_id", "session_start_time",
		"session_end_time", "status", "number_of_participants",
	}
	for i := 1; i <= participantCols; i++ {
		header = append(header,
			fmt.Sprintf("participant%d_id", i),
			fmt.Sprintf("participant%d_name", i),
			fmt.Sprintf("participant%d_first_start", i),
			fmt.Sprintf("participant%d_last_end", i),
		)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	total := len(sessions)
	for i, s := range sessions {
		if err := cw.Write(sessionRow(s, participantCols)); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
		exportRowsTotal.Inc()

		if onRow != nil && ((i+1)%10 == 0 || i+1 == total) {
			onRow(i+1, total)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	exportsTotal.Inc()
	return nil
}

// WriteFile materializes the export as a temporary CSV file in dir (or the
// system temp dir when dir is empty) and returns its path. The caller owns
// the file's lifecycle.
func WriteFile(dir string, sessions []videosdk.Session, participantCols int, onRow RowFunc) (string, error) {
	f, err := os.CreateTemp(dir, "usage-*.csv")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if err := Write(f, sessions, participantCols, onRow); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}

	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}

	log.Debug().
		Str("component", "export").
		Str("path", f.Name()).
		Int("rows", len(sessions)).
		Int("participant_cols", participantCols).
		Msg("Export written")

	return f.Name(), nil
}

// sessionRow builds one CSV row with the fixed leading columns and
// participantCols slot groups.
func sessionRow(s videosdk.Session, participantCols int) []string {
	row := []string{
		s.ID,
		s.RoomID,
		string(s.Start),
		string(s.End),
		s.Status,
		fmt.Sprintf("%d", len(s.Participants)),
	}

	for i := 0; i < participantCols; i++ {
		if i >= len(s.Participants) {
			row = append(row, "", "", "", "")
			continue
		}

		p := s.Participants[i]
		firstStart, lastEnd := timelogBounds(p.Timelog)
		row = append(row, p.ParticipantID, p.Name, firstStart, lastEnd)
	}

	return row
}

// timelogBounds returns the minimum start and maximum end across the
// participant's timelog, skipping absent values. Empty strings when the
// timelog carries none.
func timelogBounds(timelog []videosdk.TimelogEntry) (firstStart, lastEnd string) {
	var minStart, maxEnd videosdk.Raw
	haveStart, haveEnd := false, false

	for _, entry := range timelog {
		if entry.Start != "" && (!haveStart || entry.Start.Less(minStart)) {
			minStart = entry.Start
			haveStart = true
		}
		if entry.End != "" && (!haveEnd || maxEnd.Less(entry.End)) {
			maxEnd = entry.End
			haveEnd = true
		}
	}

	return string(minStart), string(maxEnd)
}
