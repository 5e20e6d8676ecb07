/*
Package catalog administers what sessions are booked against: clients,
client groups, task groups, tasks, and the actors themselves.

REFERENTIAL GUARD:
  Tasks and clients referenced by any work session cannot be deleted. The
  service counts references first to give a useful message; the durable
  store also enforces it with foreign keys, so a session created between
  the count and the delete still blocks it.

NATURAL KEYS:
  Client tax id, client group code, task group code and actor login are
  unique. Duplicates come back from the store as *ledger.ConflictError.
*/
package catalog

import (
	"context"

	"github.com/warp/hours-engine/ledger"
)

// Store is the persistence the catalog needs.
type Store interface {
	ledger.Directory
	ledger.TaskLookup

	CreateActor(ctx context.Context, a ledger.Actor) error
	UpdateActor(ctx context.Context, a ledger.Actor) error

	CreateClientGroup(ctx context.Context, g ledger.ClientGroup) error
	ListClientGroups(ctx context.Context) ([]ledger.ClientGroup, error)
	GetClientGroup(ctx context.Context, code string) (ledger.ClientGroup, error)

	CreateClient(ctx context.Context, c ledger.Client) error
	GetClient(ctx context.Context, id ledger.ClientID) (ledger.Client, error)
	SearchClients(ctx context.Context, query string, limit int) ([]ledger.Client, error)
	DeleteClient(ctx context.Context, id ledger.ClientID) error

	CreateTaskGroup(ctx context.Context, g ledger.TaskGroup) error
	ListTaskGroups(ctx context.Context) ([]ledger.TaskGroup, error)
	GetTaskGroup(ctx context.Context, code string) (ledger.TaskGroup, error)

	CreateTask(ctx context.Context, t ledger.Task) error
	TasksByClient(ctx context.Context, id ledger.ClientID) ([]ledger.Task, error)
	DeleteTask(ctx context.Context, id ledger.TaskID) error

	// CountSessions counts sessions referencing the client or task.
	// Exactly one of client/task is set.
	CountSessions(ctx context.Context, client ledger.ClientID, task ledger.TaskID) (int, error)
}
