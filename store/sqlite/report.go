package sqlite

import (
	"context"
	"time"

	"github.com/warp/hours-engine/report"
)

// =============================================================================
// REPORT SOURCE (report.Source interface)
// =============================================================================

// Rows returns sessions joined with actor, client, task and group metadata.
func (s *Store) Rows(ctx context.Context, q report.Query) ([]report.Row, error) {
	if len(q.Actors) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT ws.id, ws.actor_id, a.display_name, COALESCE(a.department, ''),
		       ws.client_id, c.name, COALESCE(c.group_code, ''), COALESCE(cg.description, ''),
		       ws.task_id, t.name, t.group_code, COALESCE(tg.name, ''),
		       ws.status, ws.started_at,
		       COALESCE(ws.total_ns, 0), COALESCE(ws.paused_ns, 0), COALESCE(ws.worked_ns, 0)
		FROM work_sessions ws
		JOIN actors a ON a.login = ws.actor_id
		JOIN clients c ON c.tax_id = ws.client_id
		LEFT JOIN client_groups cg ON cg.code = c.group_code
		JOIN tasks t ON t.id = ws.task_id
		LEFT JOIN task_groups tg ON tg.code = t.group_code
		WHERE ws.actor_id IN (` + placeholders(len(q.Actors)) + `)`

	args := make([]any, 0, len(q.Actors)+2)
	for _, a := range q.Actors {
		args = append(args, a)
	}
	if !q.Period.Start.IsZero() {
		query += " AND ws.started_at >= ?"
		args = append(args, formatTime(q.Period.Start))
	}
	if !q.Period.End.IsZero() {
		query += " AND ws.started_at < ?"
		args = append(args, formatTime(q.Period.End))
	}
	if q.FinishedOnly {
		query += " AND ws.status = 'finished'"
	}
	query += " ORDER BY ws.started_at, ws.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("report rows", err)
	}
	defer rows.Close()

	var out []report.Row
	for rows.Next() {
		var (
			r                     report.Row
			startedAt             string
			total, paused, worked int64
		)
		err := rows.Scan(
			&r.SessionID, &r.ActorID, &r.ActorName, &r.Department,
			&r.ClientID, &r.ClientName, &r.ClientGroup, &r.ClientGroupName,
			&r.TaskID, &r.TaskName, &r.TaskGroup, &r.TaskGroupName,
			&r.Status, &startedAt, &total, &paused, &worked,
		)
		if err != nil {
			return nil, storeErr("scan report row", err)
		}
		r.StartedAt = parseTime(startedAt)
		r.Total, r.Paused, r.Worked = time.Duration(total), time.Duration(paused), time.Duration(worked)
		out = append(out, r)
	}
	return out, storeErr("report rows", rows.Err())
}
