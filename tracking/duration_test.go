package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hours-engine/ledger"
)

var base = time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := base.Add(d)
	return &t
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name    string
		end     time.Duration
		pauses  []ledger.PauseInterval
		total   time.Duration
		paused  time.Duration
		worked  time.Duration
		clamped bool
	}{
		{
			name:   "no pauses",
			end:    3 * time.Hour,
			total:  3 * time.Hour,
			worked: 3 * time.Hour,
		},
		{
			name: "closed pauses",
			end:  4 * time.Hour,
			pauses: []ledger.PauseInterval{
				{PausedAt: base.Add(time.Hour), ResumedAt: at(90 * time.Minute)},
				{PausedAt: base.Add(2 * time.Hour), ResumedAt: at(2*time.Hour + 15*time.Minute)},
			},
			total:  4 * time.Hour,
			paused: 45 * time.Minute,
			worked: 3*time.Hour + 15*time.Minute,
		},
		{
			name: "open pause runs to finish",
			end:  2 * time.Hour,
			pauses: []ledger.PauseInterval{
				{PausedAt: base.Add(30 * time.Minute)},
			},
			total:  2 * time.Hour,
			paused: 90 * time.Minute,
			worked: 30 * time.Minute,
		},
		{
			name: "pause longer than session clamps worked",
			end:  time.Hour,
			pauses: []ledger.PauseInterval{
				{PausedAt: base.Add(-time.Hour), ResumedAt: at(time.Hour)},
			},
			total:   time.Hour,
			paused:  2 * time.Hour,
			worked:  0,
			clamped: true,
		},
		{
			name:    "finish before start clamps total",
			end:     -time.Minute,
			total:   0,
			worked:  0,
			clamped: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ledger.WorkSession{ID: "s", StartedAt: base, FinishedAt: at(tt.end)}
			got, err := Compute(s, tt.pauses)
			require.NoError(t, err)
			assert.Equal(t, tt.total, got.Total)
			assert.Equal(t, tt.paused, got.Paused)
			assert.Equal(t, tt.worked, got.Worked)
			assert.Equal(t, tt.clamped, got.Clamped)
			assert.GreaterOrEqual(t, got.Worked, time.Duration(0))
		})
	}
}

func TestCompute_RequiresFinish(t *testing.T) {
	_, err := Compute(ledger.WorkSession{ID: "s", StartedAt: base}, nil)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestCompute_HoursRounding(t *testing.T) {
	// 1h 20m = 1.3333.. h, stored as 1.33; exact duration kept for sums
	s := ledger.WorkSession{StartedAt: base, FinishedAt: at(80 * time.Minute)}
	got, err := Compute(s, nil)
	require.NoError(t, err)
	got.Apply(&s)
	assert.Equal(t, "1.33", s.WorkedHours().StringFixed(2))
	assert.Equal(t, 80*time.Minute, s.Worked)
}
