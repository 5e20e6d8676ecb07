/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  One Store type implements every persistence interface in the module.
  In production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  ledger.TxStore:    Sessions and pause intervals (sessions.go)
  ledger.Directory:  Actors (directory.go)
  catalog.Store:     Clients, groups, tasks, actors (catalog.go)
  report.Source:     Joined session rows (report.go)
  report.Catalog:    Client and task groups
  alerts.Store:      Open sessions and notifications (alerts.go)

KEY TABLES:
  work_sessions:    One row per start→finish cycle
  pause_intervals:  Pauses, resumed_at NULL while open
  actors, clients, client_groups, tasks, task_groups: catalog
  notifications:    Durable alerts keyed by (actor, kind, trigger_key)

INVARIANT INDEXES:
  - idx_one_active_session: at most one in_progress/paused session per actor
  - idx_one_open_pause: at most one open pause per session
  - idx_notification_trigger: one notification per actor, kind and trigger
  Foreign keys block deleting tasks and clients that sessions reference.

CONCURRENCY:
  Uses sync.RWMutex for in-process serialization. Transactions are opened
  with BEGIN IMMEDIATE (_txlock=immediate), so separate processes sharing
  the file also serialize their read-check-write sequences, and the unique
  indexes reject whatever slips through. SQLITE_BUSY after the busy timeout
  surfaces as a TransientStoreError.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

TIME FORMAT:
  Timestamps are stored as fixed-width UTC text (nanosecond precision) so
  that string comparison orders them correctly. Durations are stored as
  integer nanoseconds next to their rounded hour strings.

USAGE:
  store, err := sqlite.New("./data/hours.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/hours-engine/alerts"
	"github.com/warp/hours-engine/catalog"
	"github.com/warp/hours-engine/ledger"
	"github.com/warp/hours-engine/report"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ ledger.TxStore = (*Store)(nil)
	_ catalog.Store  = (*Store)(nil)
	_ report.Source  = (*Store)(nil)
	_ report.Catalog = (*Store)(nil)
	_ alerts.Store   = (*Store)(nil)
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &ledger.TransientStoreError{Op: "ping", Err: err}
	}
	return nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Actors (login is the identity)
	CREATE TABLE IF NOT EXISTS actors (
		login TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		email TEXT,
		department TEXT,
		role TEXT NOT NULL,
		manager_login TEXT REFERENCES actors(login),
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_actors_manager
		ON actors(manager_login) WHERE manager_login IS NOT NULL;

	-- Catalog
	CREATE TABLE IF NOT EXISTS client_groups (
		code TEXT PRIMARY KEY,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS clients (
		tax_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		group_code TEXT REFERENCES client_groups(code)
	);

	CREATE INDEX IF NOT EXISTS idx_clients_name
		ON clients(name COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS task_groups (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL REFERENCES clients(tax_id),
		group_code TEXT NOT NULL REFERENCES task_groups(code),
		name TEXT NOT NULL,
		collaborator_1 TEXT REFERENCES actors(login),
		collaborator_2 TEXT REFERENCES actors(login),
		estimate_hours TEXT NOT NULL DEFAULT '0',
		priority TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_client
		ON tasks(client_id);

	-- Work sessions
	CREATE TABLE IF NOT EXISTS work_sessions (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL REFERENCES actors(login),
		client_id TEXT NOT NULL REFERENCES clients(tax_id),
		task_id TEXT NOT NULL REFERENCES tasks(id),
		status TEXT NOT NULL CHECK (status IN ('in_progress', 'paused', 'finished')),
		started_at TEXT NOT NULL,
		finished_at TEXT,
		note TEXT,
		total_ns INTEGER,
		paused_ns INTEGER,
		worked_ns INTEGER,
		total_hours TEXT,
		paused_hours TEXT,
		worked_hours TEXT,
		backdated INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one active session per actor
	CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_session
		ON work_sessions(actor_id)
		WHERE status IN ('in_progress', 'paused');

	-- Report hot path
	CREATE INDEX IF NOT EXISTS idx_sessions_actor_started
		ON work_sessions(actor_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_started
		ON work_sessions(started_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_task
		ON work_sessions(task_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_client
		ON work_sessions(client_id);

	-- Pause intervals
	CREATE TABLE IF NOT EXISTS pause_intervals (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES work_sessions(id),
		paused_at TEXT NOT NULL,
		resumed_at TEXT
	);

	-- CRITICAL: one open pause per session
	CREATE UNIQUE INDEX IF NOT EXISTS idx_one_open_pause
		ON pause_intervals(session_id)
		WHERE resumed_at IS NULL;

	CREATE INDEX IF NOT EXISTS idx_pauses_session
		ON pause_intervals(session_id, paused_at);

	-- Notifications (durable alerts)
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL REFERENCES actors(login),
		kind TEXT NOT NULL,
		message TEXT NOT NULL,
		channel TEXT NOT NULL,
		read INTEGER NOT NULL DEFAULT 0,
		trigger_key TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_notification_trigger
		ON notifications(actor_id, kind, trigger_key);
	CREATE INDEX IF NOT EXISTS idx_notifications_actor_created
		ON notifications(actor_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

// txStore runs session statements on an open transaction. It takes no lock;
// WithTx holds it.
type txStore struct {
	q querier
}

// =============================================================================
// HELPERS
// =============================================================================

// timeLayout is fixed width so that text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// storeErr maps driver errors onto the ledger error kinds.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return uniqueConflict(op, err)
		case se.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return &ledger.ConflictError{Constraint: ledger.ConstraintReferenced, Detail: op + ": referenced row missing or still in use"}
		case se.Code == sqlite3.ErrConstraint:
			return &ledger.ValidationError{Message: op + ": " + se.Error()}
		}
	}
	return &ledger.TransientStoreError{Op: op, Err: err}
}

// uniqueConflict names the violated rule from the columns in the message,
// e.g. "UNIQUE constraint failed: work_sessions.actor_id".
func uniqueConflict(op string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "work_sessions.actor_id"):
		return &ledger.ConflictError{Constraint: ledger.ConstraintActiveSession, Detail: op}
	case strings.Contains(msg, "pause_intervals.session_id"):
		return &ledger.ConflictError{Constraint: ledger.ConstraintOpenPause, Detail: op}
	}
	return &ledger.ConflictError{Constraint: ledger.ConstraintUnique, Detail: op + ": " + strings.TrimPrefix(msg, "UNIQUE constraint failed: ") + " already exists"}
}
