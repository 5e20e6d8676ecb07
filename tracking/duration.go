package tracking

import (
	"time"

	"github.com/warp/hours-engine/ledger"
)

// =============================================================================
// DURATION CALCULATOR
// =============================================================================

// Totals are the derived durations of a session.
// Worked + Paused == Total unless Clamped is set.
type Totals struct {
	Total  time.Duration
	Paused time.Duration
	Worked time.Duration

	// Clamped is set when a raw value came out negative and was forced to
	// zero. RawTotal and RawWorked keep the unclamped values.
	Clamped   bool
	RawTotal  time.Duration
	RawWorked time.Duration
}

// Compute derives totals for a finished session. A pause still open is
// treated as ending at the session's finish time.
func Compute(s ledger.WorkSession, pauses []ledger.PauseInterval) (Totals, error) {
	if s.FinishedAt == nil {
		return Totals{}, &ledger.ValidationError{Field: "finished_at", Message: "session " + string(s.ID) + " has no finish time"}
	}
	return computeAt(s.StartedAt, *s.FinishedAt, pauses), nil
}

// Elapsed derives provisional totals for a live session as of now.
func Elapsed(s ledger.WorkSession, pauses []ledger.PauseInterval, now time.Time) Totals {
	end := now
	if s.FinishedAt != nil {
		end = *s.FinishedAt
	}
	return computeAt(s.StartedAt, end, pauses)
}

func computeAt(start, end time.Time, pauses []ledger.PauseInterval) Totals {
	t := Totals{RawTotal: end.Sub(start)}
	for _, p := range pauses {
		t.Paused += p.Duration(end)
	}
	t.RawWorked = t.RawTotal - t.Paused

	t.Total = t.RawTotal
	if t.Total < 0 {
		t.Total = 0
		t.Clamped = true
	}
	if t.Paused < 0 {
		t.Paused = 0
		t.Clamped = true
	}
	t.Worked = t.RawWorked
	if t.Worked < 0 {
		t.Worked = 0
		t.Clamped = true
	}
	return t
}

// Apply copies the totals onto s.
func (t Totals) Apply(s *ledger.WorkSession) {
	s.Total, s.Paused, s.Worked = t.Total, t.Paused, t.Worked
}
