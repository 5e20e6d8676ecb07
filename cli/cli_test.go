package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hours-engine/ledger"
	"github.com/warp/hours-engine/store/sqlite"
	"github.com/warp/hours-engine/tracking"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOURS_LOG_LEVEL", "error")
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSeedListAndReport(t *testing.T) {
	db := filepath.Join(t.TempDir(), "hours.db")

	out, err := run(t, "seed", "--db", db, "--ref", "2025-04-14")
	require.NoError(t, err)
	assert.Contains(t, out, "loaded 7 actors, 3 clients, 4 tasks, 7 sessions")

	out, err = run(t, "actors", "ls", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "carla")
	assert.Contains(t, out, "coordinator")

	out, err = run(t, "report", "hours", "--db", db, "--as", "carla", "--year", "2025", "--month", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "worked hours visible to carla: 14.75 (6 sessions)")
	assert.Contains(t, out, "(ungrouped)")

	// seeding twice collides on natural keys
	_, err = run(t, "seed", "--db", db, "--ref", "2025-04-14")
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func TestActorsDeactivate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "hours.db")
	_, err := run(t, "seed", "--db", db, "--ref", "2025-04-14")
	require.NoError(t, err)

	out, err := run(t, "actors", "deactivate", "davi", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "davi is now inactive")

	_, err = run(t, "actors", "deactivate", "ghost", "--db", db)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestAlertsRun_Idempotent(t *testing.T) {
	db := filepath.Join(t.TempDir(), "hours.db")
	_, err := run(t, "seed", "--db", db, "--ref", "2025-04-14")
	require.NoError(t, err)

	// open a session on the trigger day
	st, err := sqlite.New(db)
	require.NoError(t, err)
	clock := ledger.NewManualClock(time.Date(2025, 4, 14, 10, 0, 0, 0, time.UTC))
	task, err := st.TasksByClient(context.Background(), "12345678000195")
	require.NoError(t, err)
	require.NotEmpty(t, task)
	_, err = tracking.NewMachine(st, st, st, tracking.WithClock(clock)).Start(context.Background(), tracking.StartInput{
		Actor: "ana", Client: task[0].ClientID, Task: task[0].ID,
	})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := run(t, "alerts", "run", "--db", db, "--at", "2025-04-14T18:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "trigger 2025-04-14: 1 open sessions, 1 actors, 1 notified, 0 already notified")

	out, err = run(t, "alerts", "run", "--db", db, "--at", "2025-04-14T21:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "0 notified, 1 already notified")

	_, err = run(t, "alerts", "run", "--db", db, "--at", "6pm")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	SetVersion("1.2.3")
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "hoursctl 1.2.3\n", out)
}
