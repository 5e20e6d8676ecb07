package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/hours-engine/ledger"
)

// =============================================================================
// CLIENT GROUPS AND TASK GROUPS
// =============================================================================

func (s *Store) CreateClientGroup(ctx context.Context, g ledger.ClientGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO client_groups (code, description) VALUES (?, ?)",
		g.Code, nullString(g.Description),
	)
	return storeErr("create client group", err)
}

func (s *Store) GetClientGroup(ctx context.Context, code string) (ledger.ClientGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		g    ledger.ClientGroup
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, "SELECT code, description FROM client_groups WHERE code = ?", code).Scan(&g.Code, &desc)
	if errors.Is(err, sql.ErrNoRows) {
		return g, &ledger.NotFoundError{Kind: "client group", ID: code}
	}
	if err != nil {
		return g, storeErr("get client group", err)
	}
	g.Description = desc.String
	return g, nil
}

func (s *Store) ListClientGroups(ctx context.Context) ([]ledger.ClientGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT code, description FROM client_groups ORDER BY code")
	if err != nil {
		return nil, storeErr("list client groups", err)
	}
	defer rows.Close()

	var out []ledger.ClientGroup
	for rows.Next() {
		var (
			g    ledger.ClientGroup
			desc sql.NullString
		)
		if err := rows.Scan(&g.Code, &desc); err != nil {
			return nil, storeErr("scan client group", err)
		}
		g.Description = desc.String
		out = append(out, g)
	}
	return out, storeErr("list client groups", rows.Err())
}

func (s *Store) CreateTaskGroup(ctx context.Context, g ledger.TaskGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "INSERT INTO task_groups (code, name) VALUES (?, ?)", g.Code, g.Name)
	return storeErr("create task group", err)
}

func (s *Store) GetTaskGroup(ctx context.Context, code string) (ledger.TaskGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var g ledger.TaskGroup
	err := s.db.QueryRowContext(ctx, "SELECT code, name FROM task_groups WHERE code = ?", code).Scan(&g.Code, &g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return g, &ledger.NotFoundError{Kind: "task group", ID: code}
	}
	return g, storeErr("get task group", err)
}

func (s *Store) ListTaskGroups(ctx context.Context) ([]ledger.TaskGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT code, name FROM task_groups ORDER BY name, code")
	if err != nil {
		return nil, storeErr("list task groups", err)
	}
	defer rows.Close()

	var out []ledger.TaskGroup
	for rows.Next() {
		var g ledger.TaskGroup
		if err := rows.Scan(&g.Code, &g.Name); err != nil {
			return nil, storeErr("scan task group", err)
		}
		out = append(out, g)
	}
	return out, storeErr("list task groups", rows.Err())
}

// =============================================================================
// CLIENTS
// =============================================================================

func (s *Store) CreateClient(ctx context.Context, c ledger.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var group sql.NullString
	if c.GroupCode != nil {
		group = nullString(*c.GroupCode)
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO clients (tax_id, name, group_code) VALUES (?, ?, ?)",
		c.TaxID, c.Name, group,
	)
	return storeErr("create client", err)
}

func (s *Store) GetClient(ctx context.Context, id ledger.ClientID) (ledger.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT tax_id, name, group_code FROM clients WHERE tax_id = ?", id)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return c, &ledger.NotFoundError{Kind: "client", ID: string(id)}
	}
	return c, storeErr("get client", err)
}

// SearchClients matches a case-insensitive name fragment, or tax id digits
// when the query has any. An empty query lists clients by name.
func (s *Store) SearchClients(ctx context.Context, query string, limit int) ([]ledger.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, query)
	taxLike := "%" + digits + "%"
	if digits == "" {
		taxLike = ""
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT tax_id, name, group_code FROM clients
		WHERE name LIKE ? COLLATE NOCASE OR tax_id LIKE ?
		ORDER BY name COLLATE NOCASE, tax_id
		LIMIT ?`,
		"%"+query+"%", taxLike, limit,
	)
	if err != nil {
		return nil, storeErr("search clients", err)
	}
	defer rows.Close()

	var out []ledger.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, storeErr("scan client", err)
		}
		out = append(out, c)
	}
	return out, storeErr("search clients", rows.Err())
}

func (s *Store) DeleteClient(ctx context.Context, id ledger.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM clients WHERE tax_id = ?", id)
	if err != nil {
		return storeErr("delete client", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "client", ID: string(id)}
	}
	return nil
}

func scanClient(row scanner) (ledger.Client, error) {
	var (
		c     ledger.Client
		group sql.NullString
	)
	if err := row.Scan(&c.TaxID, &c.Name, &group); err != nil {
		return c, err
	}
	if group.Valid && group.String != "" {
		g := group.String
		c.GroupCode = &g
	}
	return c, nil
}

// =============================================================================
// TASKS (ledger.TaskLookup interface)
// =============================================================================

const taskColumns = "id, client_id, group_code, name, collaborator_1, collaborator_2, estimate_hours, priority"

func (s *Store) CreateTask(ctx context.Context, t ledger.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var collab [2]sql.NullString
	for i, c := range t.Collaborators {
		if i < len(collab) {
			collab[i] = nullString(string(c))
		}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.ClientID, t.GroupCode, t.Name, collab[0], collab[1],
		t.EstimateHours.String(), nullString(t.Priority),
	)
	return storeErr("create task", err)
}

func (s *Store) GetTask(ctx context.Context, id ledger.TaskID) (ledger.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return t, &ledger.NotFoundError{Kind: "task", ID: string(id)}
	}
	return t, storeErr("get task", err)
}

func (s *Store) TasksByClient(ctx context.Context, id ledger.ClientID) ([]ledger.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE client_id = ? ORDER BY name, id", id)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	defer rows.Close()

	var out []ledger.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, storeErr("scan task", err)
		}
		out = append(out, t)
	}
	return out, storeErr("list tasks", rows.Err())
}

func (s *Store) DeleteTask(ctx context.Context, id ledger.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return storeErr("delete task", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "task", ID: string(id)}
	}
	return nil
}

func scanTask(row scanner) (ledger.Task, error) {
	var (
		t        ledger.Task
		collab1  sql.NullString
		collab2  sql.NullString
		estimate string
		priority sql.NullString
	)
	err := row.Scan(&t.ID, &t.ClientID, &t.GroupCode, &t.Name, &collab1, &collab2, &estimate, &priority)
	if err != nil {
		return t, err
	}
	for _, c := range []sql.NullString{collab1, collab2} {
		if c.Valid && c.String != "" {
			t.Collaborators = append(t.Collaborators, ledger.ActorID(c.String))
		}
	}
	t.EstimateHours, err = decimal.NewFromString(estimate)
	if err != nil {
		t.EstimateHours = decimal.Zero
	}
	t.Priority = priority.String
	return t, nil
}

// CountSessions counts work sessions booked on a client or a task.
func (s *Store) CountSessions(ctx context.Context, client ledger.ClientID, task ledger.TaskID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, arg := "SELECT COUNT(*) FROM work_sessions WHERE task_id = ?", any(task)
	if client != "" {
		query, arg = "SELECT COUNT(*) FROM work_sessions WHERE client_id = ?", any(client)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&n); err != nil {
		return 0, storeErr("count sessions", err)
	}
	return n, nil
}
