package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/warp/hours-engine/ledger"
)

// =============================================================================
// ACTOR STORE (ledger.Directory interface)
// =============================================================================

const actorColumns = "login, display_name, email, department, role, manager_login, active, created_at"

// CreateActor inserts an actor. A duplicate login is a ConflictError.
func (s *Store) CreateActor(ctx context.Context, a ledger.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO actors ("+actorColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		a.Login, a.DisplayName, nullString(a.Email), nullString(a.Department), a.Role,
		managerArg(a.ManagerLogin), boolInt(a.Active), formatTime(a.CreatedAt),
	)
	return storeErr("create actor", err)
}

// UpdateActor rewrites every mutable field of an existing actor.
func (s *Store) UpdateActor(ctx context.Context, a ledger.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE actors SET
			display_name = ?, email = ?, department = ?, role = ?,
			manager_login = ?, active = ?
		WHERE login = ?`,
		a.DisplayName, nullString(a.Email), nullString(a.Department), a.Role,
		managerArg(a.ManagerLogin), boolInt(a.Active), a.Login,
	)
	if err != nil {
		return storeErr("update actor", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "actor", ID: string(a.Login)}
	}
	return nil
}

func (s *Store) GetActor(ctx context.Context, login ledger.ActorID) (ledger.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+actorColumns+" FROM actors WHERE login = ?", login)
	a, err := scanActor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Actor{}, &ledger.NotFoundError{Kind: "actor", ID: string(login)}
	}
	if err != nil {
		return ledger.Actor{}, storeErr("get actor", err)
	}
	return a, nil
}

// ListActors returns every actor, active or not, ordered by login.
func (s *Store) ListActors(ctx context.Context) ([]ledger.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+actorColumns+" FROM actors ORDER BY login")
	if err != nil {
		return nil, storeErr("list actors", err)
	}
	defer rows.Close()

	var actors []ledger.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, storeErr("scan actor", err)
		}
		actors = append(actors, a)
	}
	return actors, storeErr("list actors", rows.Err())
}

func scanActor(row scanner) (ledger.Actor, error) {
	var (
		a                 ledger.Actor
		email, department sql.NullString
		manager           sql.NullString
		active            int
		createdAt         string
	)
	err := row.Scan(&a.Login, &a.DisplayName, &email, &department, &a.Role, &manager, &active, &createdAt)
	if err != nil {
		return a, err
	}
	a.Email = email.String
	a.Department = department.String
	if manager.Valid && manager.String != "" {
		m := ledger.ActorID(manager.String)
		a.ManagerLogin = &m
	}
	a.Active = active != 0
	a.CreatedAt = parseTime(createdAt)
	return a, nil
}

func managerArg(m *ledger.ActorID) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return nullString(string(*m))
}
