/*
Package alerts stores notifications durably and runs the open-session alert.

NOTIFICATIONS:
  Rows in a notifications table keyed by (actor, kind, trigger key). They
  survive restarts and are shared by every server instance. Expiry is a
  query-time filter: an inbox lists rows created after now - window. Nothing
  sweeps old rows.

OPEN-SESSION JOB:
  Job.Run is invoked once per trigger time by an external scheduler (cron,
  a systemd timer, `hoursctl alerts run`, or POST /api/admin/alerts/run).
  It finds sessions started that day that are still in progress or paused
  and writes one notification per actor. The trigger key is the local date,
  so a duplicate or late invocation for the same day inserts nothing.
*/
package alerts

import (
	"context"
	"time"

	"github.com/warp/hours-engine/ledger"
)

// =============================================================================
// TYPES
// =============================================================================

type Kind string

const KindOpenSession Kind = "open_session"

type Channel string

const ChannelSystem Channel = "system"

type Notification struct {
	ID         string
	Actor      ledger.ActorID
	Kind       Kind
	Message    string
	Channel    Channel
	Read       bool
	TriggerKey string
	CreatedAt  time.Time
}

// OpenSession is an active session joined with what the message needs.
type OpenSession struct {
	SessionID  ledger.SessionID
	Actor      ledger.ActorID
	ActorName  string
	Status     ledger.Status
	ClientName string
	TaskName   string
	StartedAt  time.Time
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// OpenSessions lists in_progress and paused sessions of active actors
	// started in [from, to).
	OpenSessions(ctx context.Context, from, to time.Time) ([]OpenSession, error)

	// InsertNotification returns false without error when a notification
	// with the same actor, kind and trigger key exists.
	InsertNotification(ctx context.Context, n Notification) (bool, error)

	ListNotifications(ctx context.Context, actor ledger.ActorID, since time.Time, unreadOnly bool) ([]Notification, error)

	// MarkRead marks the actor's unread notifications created after since.
	MarkRead(ctx context.Context, actor ledger.ActorID, since time.Time) (int, error)
}

// =============================================================================
// INBOX
// =============================================================================

// Inbox reads an actor's notifications within the retention window.
type Inbox struct {
	store  Store
	clock  ledger.Clock
	window time.Duration
}

func NewInbox(store Store, clock ledger.Clock, window time.Duration) *Inbox {
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	return &Inbox{store: store, clock: clock, window: window}
}

func (i *Inbox) since() time.Time {
	return i.clock.Now().Add(-i.window)
}

func (i *Inbox) List(ctx context.Context, actor ledger.ActorID, unreadOnly bool) ([]Notification, error) {
	ns, err := i.store.ListNotifications(ctx, actor, i.since(), unreadOnly)
	return ns, ledger.Transient("list notifications", err)
}

// MarkRead clears the actor's visible notifications.
func (i *Inbox) MarkRead(ctx context.Context, actor ledger.ActorID) (int, error) {
	n, err := i.store.MarkRead(ctx, actor, i.since())
	return n, ledger.Transient("mark notifications read", err)
}
