package timerange

import (
	"errors"
	"testing"
	"time"
)

func TestMonthRange(t *testing.T) {
	tests := []struct {
		name      string
		year      int
		month     int
		wantStart string
		wantEnd   string
	}{
		{
			name:      "january",
			year:      2024,
			month:     1,
			wantStart: "2024-01-01T00:00:00Z",
			wantEnd:   "2024-01-31T23:59:59Z",
		},
		{
			name:      "february leap year",
			year:      2024,
			month:     2,
			wantStart: "2024-02-01T00:00:00Z",
			wantEnd:   "2024-02-29T23:59:59Z",
		},
		{
			name:      "february non-leap year",
			year:      2023,
			month:     2,
			wantStart: "2023-02-01T00:00:00Z",
			wantEnd:   "2023-02-28T23:59:59Z",
		},
		{
			name:      "december rolls to next year",
			year:      2023,
			month:     12,
			wantStart: "2023-12-01T00:00:00Z",
			wantEnd:   "2023-12-31T23:59:59Z",
		},
		{
			name:      "thirty day month",
			year:      2024,
			month:     4,
			wantStart: "2024-04-01T00:00:00Z",
			wantEnd:   "2024-04-30T23:59:59Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := MonthRange(tt.year, tt.month)
			if err != nil {
				t.Fatalf("MonthRange(%d, %d) returned error: %v", tt.year, tt.month, err)
			}

			wantStart := mustParse(t, tt.wantStart).UnixMilli()
			wantEnd := mustParse(t, tt.wantEnd).UnixMilli()

			if r.StartMs != wantStart {
				t.Errorf("StartMs = %d, want %d", r.StartMs, wantStart)
			}
			if r.EndMs != wantEnd {
				t.Errorf("EndMs = %d, want %d", r.EndMs, wantEnd)
			}
		})
	}
}

func TestMonthRange_EndIsOneSecondBeforeNextMonth(t *testing.T) {
	for month := 1; month <= 12; month++ {
		r, err := MonthRange(2024, month)
		if err != nil {
			t.Fatalf("MonthRange(2024, %d) returned error: %v", month, err)
		}

		nextYear, nextMonth := 2024, month+1
		if month == 12 {
			nextYear, nextMonth = 2025, 1
		}
		next, err := MonthRange(nextYear, nextMonth)
		if err != nil {
			t.Fatalf("MonthRange(%d, %d) returned error: %v", nextYear, nextMonth, err)
		}

		if got := next.StartMs - r.EndMs; got != 1000 {
			t.Errorf("month %d: gap to next month start = %dms, want 1000ms", month, got)
		}
	}
}

func TestMonthRange_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		year  int
		month int
	}{
		{name: "month zero", year: 2024, month: 0},
		{name: "month thirteen", year: 2024, month: 13},
		{name: "negative month", year: 2024, month: -1},
		{name: "three digit year", year: 999, month: 6},
		{name: "five digit year", year: 10000, month: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MonthRange(tt.year, tt.month)
			if !errors.Is(err, ErrInvalidMonth) {
				t.Errorf("MonthRange(%d, %d) error = %v, want ErrInvalidMonth", tt.year, tt.month, err)
			}
		})
	}
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", s, err)
	}
	return ts
}
