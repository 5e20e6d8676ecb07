package sqlite

import (
	"context"
	"time"

	"github.com/warp/hours-engine/alerts"
	"github.com/warp/hours-engine/ledger"
)

// =============================================================================
// ALERT STORE (alerts.Store interface)
// =============================================================================

// OpenSessions lists in_progress and paused sessions of active actors that
// started in [from, to).
func (s *Store) OpenSessions(ctx context.Context, from, to time.Time) ([]alerts.OpenSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT ws.id, ws.actor_id, a.display_name, ws.status, c.name, t.name, ws.started_at
		FROM work_sessions ws
		JOIN actors a ON a.login = ws.actor_id AND a.active = 1
		JOIN clients c ON c.tax_id = ws.client_id
		JOIN tasks t ON t.id = ws.task_id
		WHERE ws.status IN ('in_progress', 'paused')
		  AND ws.started_at >= ? AND ws.started_at < ?
		ORDER BY ws.actor_id, ws.started_at`,
		formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, storeErr("open sessions", err)
	}
	defer rows.Close()

	var out []alerts.OpenSession
	for rows.Next() {
		var (
			o         alerts.OpenSession
			startedAt string
		)
		if err := rows.Scan(&o.SessionID, &o.Actor, &o.ActorName, &o.Status, &o.ClientName, &o.TaskName, &startedAt); err != nil {
			return nil, storeErr("scan open session", err)
		}
		o.StartedAt = parseTime(startedAt)
		out = append(out, o)
	}
	return out, storeErr("open sessions", rows.Err())
}

// InsertNotification is a no-op returning false when the (actor, kind,
// trigger_key) row exists.
func (s *Store) InsertNotification(ctx context.Context, n alerts.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, actor_id, kind, message, channel, read, trigger_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (actor_id, kind, trigger_key) DO NOTHING`,
		n.ID, n.Actor, n.Kind, n.Message, n.Channel, boolInt(n.Read), n.TriggerKey, formatTime(n.CreatedAt),
	)
	if err != nil {
		return false, storeErr("insert notification", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("insert notification", err)
	}
	return affected == 1, nil
}

func (s *Store) ListNotifications(ctx context.Context, actor ledger.ActorID, since time.Time, unreadOnly bool) ([]alerts.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, actor_id, kind, message, channel, read, trigger_key, created_at
		FROM notifications
		WHERE actor_id = ? AND created_at > ?`
	if unreadOnly {
		query += " AND read = 0"
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, actor, formatTime(since))
	if err != nil {
		return nil, storeErr("list notifications", err)
	}
	defer rows.Close()

	var out []alerts.Notification
	for rows.Next() {
		var (
			n         alerts.Notification
			read      int
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.Actor, &n.Kind, &n.Message, &n.Channel, &read, &n.TriggerKey, &createdAt); err != nil {
			return nil, storeErr("scan notification", err)
		}
		n.Read = read != 0
		n.CreatedAt = parseTime(createdAt)
		out = append(out, n)
	}
	return out, storeErr("list notifications", rows.Err())
}

func (s *Store) MarkRead(ctx context.Context, actor ledger.ActorID, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read = 1 WHERE actor_id = ? AND created_at > ? AND read = 0",
		actor, formatTime(since),
	)
	if err != nil {
		return 0, storeErr("mark notifications read", err)
	}
	n, err := res.RowsAffected()
	return int(n), storeErr("mark notifications read", err)
}
