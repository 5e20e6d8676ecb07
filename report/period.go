package report

import "time"

// =============================================================================
// PERIOD - Calendar window used to pre-filter sessions by start time
// =============================================================================

// Period is the half-open interval [Start, End). A zero Start or End is
// unbounded on that side.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t is within [Start, End).
func (p Period) Contains(t time.Time) bool {
	if !p.Start.IsZero() && t.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && !t.Before(p.End) {
		return false
	}
	return true
}

func (p Period) Unbounded() bool { return p.Start.IsZero() && p.End.IsZero() }

func (p Period) String() string {
	return "[" + p.Start.Format(time.DateOnly) + ", " + p.End.Format(time.DateOnly) + ")"
}

// YearPeriod is the calendar year in loc.
func YearPeriod(year int, loc *time.Location) Period {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	return Period{Start: start, End: start.AddDate(1, 0, 0)}
}

// MonthPeriod is one calendar month in loc.
func MonthPeriod(year int, month time.Month, loc *time.Location) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// PeriodFor returns the narrowest period covering a year/month filter.
// Month without year cannot be expressed as one period and is unbounded;
// the month is then matched per row.
func PeriodFor(year, month int, loc *time.Location) Period {
	switch {
	case year == 0:
		return Period{}
	case month == 0:
		return YearPeriod(year, loc)
	}
	return MonthPeriod(year, time.Month(month), loc)
}
