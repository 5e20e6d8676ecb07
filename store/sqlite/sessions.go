package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/warp/hours-engine/ledger"
)

// =============================================================================
// SESSION STORE (ledger.Store interface)
// =============================================================================

const sessionColumns = `id, actor_id, client_id, task_id, status, started_at, finished_at, note,
	total_ns, paused_ns, worked_ns, backdated`

func (s *Store) CreateSession(ctx context.Context, sess ledger.WorkSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createSession(ctx, s.db, sess)
}

func (s *Store) GetSession(ctx context.Context, id ledger.SessionID) (ledger.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSession(ctx, s.db, id)
}

func (s *Store) ActiveSession(ctx context.Context, actor ledger.ActorID) (*ledger.WorkSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeSession(ctx, s.db, actor)
}

func (s *Store) UpdateSession(ctx context.Context, sess ledger.WorkSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateSession(ctx, s.db, sess)
}

func (s *Store) AddPause(ctx context.Context, p ledger.PauseInterval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addPause(ctx, s.db, p)
}

func (s *Store) OpenPause(ctx context.Context, session ledger.SessionID) (*ledger.PauseInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return openPause(ctx, s.db, session)
}

func (s *Store) ClosePause(ctx context.Context, id ledger.PauseID, resumedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return closePause(ctx, s.db, id, resumedAt)
}

func (s *Store) Pauses(ctx context.Context, session ledger.SessionID) ([]ledger.PauseInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pauses(ctx, s.db, session)
}

func (ts *txStore) CreateSession(ctx context.Context, sess ledger.WorkSession) error {
	return createSession(ctx, ts.q, sess)
}

func (ts *txStore) GetSession(ctx context.Context, id ledger.SessionID) (ledger.WorkSession, error) {
	return getSession(ctx, ts.q, id)
}

func (ts *txStore) ActiveSession(ctx context.Context, actor ledger.ActorID) (*ledger.WorkSession, error) {
	return activeSession(ctx, ts.q, actor)
}

func (ts *txStore) UpdateSession(ctx context.Context, sess ledger.WorkSession) error {
	return updateSession(ctx, ts.q, sess)
}

func (ts *txStore) AddPause(ctx context.Context, p ledger.PauseInterval) error {
	return addPause(ctx, ts.q, p)
}

func (ts *txStore) OpenPause(ctx context.Context, session ledger.SessionID) (*ledger.PauseInterval, error) {
	return openPause(ctx, ts.q, session)
}

func (ts *txStore) ClosePause(ctx context.Context, id ledger.PauseID, resumedAt time.Time) error {
	return closePause(ctx, ts.q, id, resumedAt)
}

func (ts *txStore) Pauses(ctx context.Context, session ledger.SessionID) ([]ledger.PauseInterval, error) {
	return pauses(ctx, ts.q, session)
}

// =============================================================================
// STATEMENTS
// =============================================================================

func createSession(ctx context.Context, q querier, sess ledger.WorkSession) error {
	query := `
		INSERT INTO work_sessions
		(id, actor_id, client_id, task_id, status, started_at, finished_at, note,
		 total_ns, paused_ns, worked_ns, total_hours, paused_hours, worked_hours,
		 backdated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	total, paused, worked := durationArgs(sess)
	_, err := q.ExecContext(ctx, query,
		sess.ID, sess.ActorID, sess.ClientID, sess.TaskID, sess.Status,
		formatTime(sess.StartedAt), nullTime(sess.FinishedAt), nullString(sess.Note),
		total[0], paused[0], worked[0], total[1], paused[1], worked[1],
		boolInt(sess.Backdated), formatTime(time.Now()),
	)
	if err != nil {
		err = storeErr("create session", err)
		var conflict *ledger.ConflictError
		if errors.As(err, &conflict) && conflict.Constraint == ledger.ConstraintActiveSession {
			conflict.ActorID = sess.ActorID
		}
		return err
	}
	return nil
}

// durationArgs returns (ns, hours) pairs, NULL until the session finishes.
func durationArgs(sess ledger.WorkSession) (total, paused, worked [2]any) {
	if sess.Status != ledger.StatusFinished {
		return
	}
	total = [2]any{int64(sess.Total), sess.TotalHours().StringFixed(2)}
	paused = [2]any{int64(sess.Paused), sess.PausedHours().StringFixed(2)}
	worked = [2]any{int64(sess.Worked), sess.WorkedHours().StringFixed(2)}
	return
}

func getSession(ctx context.Context, q querier, id ledger.SessionID) (ledger.WorkSession, error) {
	row := q.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM work_sessions WHERE id = ?", id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.WorkSession{}, &ledger.NotFoundError{Kind: "session", ID: string(id)}
	}
	if err != nil {
		return ledger.WorkSession{}, storeErr("get session", err)
	}
	return sess, nil
}

func activeSession(ctx context.Context, q querier, actor ledger.ActorID) (*ledger.WorkSession, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM work_sessions WHERE actor_id = ? AND status IN ('in_progress', 'paused')",
		actor,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("active session", err)
	}
	return &sess, nil
}

func updateSession(ctx context.Context, q querier, sess ledger.WorkSession) error {
	query := `
		UPDATE work_sessions SET
			status = ?, finished_at = ?,
			total_ns = ?, paused_ns = ?, worked_ns = ?,
			total_hours = ?, paused_hours = ?, worked_hours = ?
		WHERE id = ?
	`
	total, paused, worked := durationArgs(sess)
	res, err := q.ExecContext(ctx, query,
		sess.Status, nullTime(sess.FinishedAt),
		total[0], paused[0], worked[0], total[1], paused[1], worked[1],
		sess.ID,
	)
	if err != nil {
		return storeErr("update session", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "session", ID: string(sess.ID)}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (ledger.WorkSession, error) {
	var (
		sess                  ledger.WorkSession
		startedAt             string
		finishedAt, note      sql.NullString
		total, paused, worked sql.NullInt64
		backdated             int
	)
	err := row.Scan(
		&sess.ID, &sess.ActorID, &sess.ClientID, &sess.TaskID, &sess.Status,
		&startedAt, &finishedAt, &note, &total, &paused, &worked, &backdated,
	)
	if err != nil {
		return sess, err
	}
	sess.StartedAt = parseTime(startedAt)
	sess.FinishedAt = timePtr(finishedAt)
	sess.Note = note.String
	sess.Total = time.Duration(total.Int64)
	sess.Paused = time.Duration(paused.Int64)
	sess.Worked = time.Duration(worked.Int64)
	sess.Backdated = backdated != 0
	return sess, nil
}

func addPause(ctx context.Context, q querier, p ledger.PauseInterval) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO pause_intervals (id, session_id, paused_at, resumed_at) VALUES (?, ?, ?, ?)",
		p.ID, p.SessionID, formatTime(p.PausedAt), nullTime(p.ResumedAt),
	)
	if err != nil {
		err = storeErr("add pause", err)
		var conflict *ledger.ConflictError
		if errors.As(err, &conflict) && conflict.Constraint == ledger.ConstraintOpenPause {
			conflict.SessionID = p.SessionID
		}
		return err
	}
	return nil
}

func openPause(ctx context.Context, q querier, session ledger.SessionID) (*ledger.PauseInterval, error) {
	row := q.QueryRowContext(ctx,
		"SELECT id, session_id, paused_at, resumed_at FROM pause_intervals WHERE session_id = ? AND resumed_at IS NULL",
		session,
	)
	p, err := scanPause(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("open pause", err)
	}
	return &p, nil
}

func closePause(ctx context.Context, q querier, id ledger.PauseID, resumedAt time.Time) error {
	res, err := q.ExecContext(ctx,
		"UPDATE pause_intervals SET resumed_at = ? WHERE id = ?",
		formatTime(resumedAt), id,
	)
	if err != nil {
		return storeErr("close pause", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "pause", ID: string(id)}
	}
	return nil
}

func pauses(ctx context.Context, q querier, session ledger.SessionID) ([]ledger.PauseInterval, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, session_id, paused_at, resumed_at FROM pause_intervals WHERE session_id = ? ORDER BY paused_at, id",
		session,
	)
	if err != nil {
		return nil, storeErr("list pauses", err)
	}
	defer rows.Close()

	var out []ledger.PauseInterval
	for rows.Next() {
		p, err := scanPause(rows)
		if err != nil {
			return nil, storeErr("scan pause", err)
		}
		out = append(out, p)
	}
	return out, storeErr("list pauses", rows.Err())
}

func scanPause(row scanner) (ledger.PauseInterval, error) {
	var (
		p         ledger.PauseInterval
		pausedAt  string
		resumedAt sql.NullString
	)
	if err := row.Scan(&p.ID, &p.SessionID, &pausedAt, &resumedAt); err != nil {
		return p, err
	}
	p.PausedAt = parseTime(pausedAt)
	p.ResumedAt = timePtr(resumedAt)
	return p, nil
}
