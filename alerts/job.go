package alerts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/hours-engine/ledger"
)

// =============================================================================
// JOB - Evaluate open sessions and notify, idempotently
// =============================================================================

type Job struct {
	store  Store
	loc    *time.Location
	logger *zap.Logger
	newID  func() string
}

// RunResult reports one invocation.
type RunResult struct {
	TriggerKey string
	Sessions   int
	Actors     int
	Notified   int
	Skipped    int
}

func NewJob(store Store, loc *time.Location, logger *zap.Logger) *Job {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{store: store, loc: loc, logger: logger, newID: uuid.NewString}
}

// TriggerKey identifies the run a notification belongs to.
func (j *Job) TriggerKey(at time.Time) string {
	return at.In(j.loc).Format(time.DateOnly)
}

// Run evaluates sessions started on at's local date that are still open and
// writes one notification per actor. Running again for the same date
// inserts nothing.
func (j *Job) Run(ctx context.Context, at time.Time) (RunResult, error) {
	local := at.In(j.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, j.loc)
	res := RunResult{TriggerKey: j.TriggerKey(at)}

	open, err := j.store.OpenSessions(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return res, ledger.Transient("alerts run", err)
	}
	res.Sessions = len(open)

	byActor := map[ledger.ActorID][]OpenSession{}
	for _, s := range open {
		byActor[s.Actor] = append(byActor[s.Actor], s)
	}
	actors := make([]ledger.ActorID, 0, len(byActor))
	for a := range byActor {
		actors = append(actors, a)
	}
	sort.Slice(actors, func(i, k int) bool { return actors[i] < actors[k] })
	res.Actors = len(actors)

	for _, actor := range actors {
		n := Notification{
			ID:         j.newID(),
			Actor:      actor,
			Kind:       KindOpenSession,
			Message:    j.message(byActor[actor], at),
			Channel:    ChannelSystem,
			TriggerKey: res.TriggerKey,
			CreatedAt:  at,
		}
		inserted, err := j.store.InsertNotification(ctx, n)
		if err != nil {
			return res, ledger.Transient("alerts run", err)
		}
		if inserted {
			res.Notified++
		} else {
			res.Skipped++
		}
	}

	j.logger.Info("open-session alerts evaluated",
		zap.String("trigger", res.TriggerKey),
		zap.Int("sessions", res.Sessions),
		zap.Int("notified", res.Notified),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func (j *Job) message(sessions []OpenSession, at time.Time) string {
	sort.Slice(sessions, func(i, k int) bool { return sessions[i].StartedAt.Before(sessions[k].StartedAt) })

	var b strings.Builder
	if len(sessions) == 1 {
		b.WriteString("You have 1 session still open:")
	} else {
		fmt.Fprintf(&b, "You have %d sessions still open:", len(sessions))
	}
	for _, s := range sessions {
		status := "in progress"
		if s.Status == ledger.StatusPaused {
			status = "paused"
		}
		fmt.Fprintf(&b, "\n- [%s] %s / %s, started %s (%s)",
			status, s.ClientName, s.TaskName,
			humanize.RelTime(s.StartedAt, at, "ago", "from now"),
			s.StartedAt.In(j.loc).Format("15:04"),
		)
	}
	return b.String()
}
