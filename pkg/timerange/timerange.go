// Package timerange converts calendar months into the millisecond-epoch
// intervals the VideoSDK sessions API expects.
package timerange

import (
	"fmt"
	"time"
)

// ErrInvalidMonth is returned when the requested month is outside 1-12
// or the year is not a plausible 4-digit year.
var ErrInvalidMonth = fmt.Errorf("invalid month")

// Range is an inclusive millisecond-epoch interval.
type Range struct {
	StartMs int64
	EndMs   int64
}

// MonthRange returns the inclusive UTC interval covering the given calendar
// month: from the first instant of the month to one second before the first
// instant of the following month.
func MonthRange(year, month int) (Range, error) {
	if month < 1 || month > 12 {
		return Range{}, fmt.Errorf("%w: month %d (want 1-12)", ErrInvalidMonth, month)
	}
	if year < 1000 || year > 9999 {
		return Range{}, fmt.Errorf("%w: year %d (want 4-digit year)", ErrInvalidMonth, year)
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes month 13 to January of the next year.
	next := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	end := next.Add(-time.Second)

	return Range{
		StartMs: start.UnixMilli(),
		EndMs:   end.UnixMilli(),
	}, nil
}
