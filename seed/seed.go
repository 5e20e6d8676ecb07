/*
Package seed loads a small demo organization for development, tests and
the admin CLI.

THE DEMO ORG:
  admin (admin), sofia (partner)
  carla (coordinator) ── ana (employee)
                     └── bruno (supervisor) ── davi (contractor)
  edu (employee, inactive, reports to carla)

  Two client groups, three clients (one without a group), two task groups,
  four tasks, and a handful of backdated finished sessions in the month
  before the reference time.

NOTE:
  Load expects an empty database. Natural-key collisions surface as
  ConflictError.
*/
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/hours-engine/catalog"
	"github.com/warp/hours-engine/ledger"
	"github.com/warp/hours-engine/tracking"
)

// Demo names what Load created.
type Demo struct {
	Actors   []ledger.ActorID
	Clients  map[string]ledger.ClientID
	Tasks    map[string]ledger.Task
	Sessions []ledger.WorkSession
}

func mgr(login ledger.ActorID) *ledger.ActorID { return &login }

var actors = []ledger.Actor{
	{Login: "admin", DisplayName: "Admin", Email: "admin@example.com", Department: "IT", Role: ledger.RoleAdmin},
	{Login: "sofia", DisplayName: "Sofia Prado", Email: "sofia@example.com", Department: "Board", Role: ledger.RolePartner},
	{Login: "carla", DisplayName: "Carla Mendes", Email: "carla@example.com", Department: "Audit", Role: ledger.RoleCoordinator},
	{Login: "ana", DisplayName: "Ana Souza", Email: "ana@example.com", Department: "Audit", Role: ledger.RoleEmployee, ManagerLogin: mgr("carla")},
	{Login: "bruno", DisplayName: "Bruno Lima", Email: "bruno@example.com", Department: "Tax", Role: ledger.RoleSupervisor, ManagerLogin: mgr("carla")},
	{Login: "davi", DisplayName: "Davi Rocha", Email: "davi@example.com", Department: "Tax", Role: ledger.RoleContractor, ManagerLogin: mgr("bruno")},
	{Login: "edu", DisplayName: "Eduardo Reis", Email: "edu@example.com", Department: "Audit", Role: ledger.RoleEmployee, ManagerLogin: mgr("carla")},
}

// Load creates the demo org. Backdated sessions are placed in the calendar
// month before ref.
func Load(ctx context.Context, svc *catalog.Service, machine *tracking.Machine, ref time.Time) (*Demo, error) {
	demo := &Demo{Clients: map[string]ledger.ClientID{}, Tasks: map[string]ledger.Task{}}

	for _, a := range actors {
		if _, err := svc.CreateActor(ctx, a); err != nil {
			return nil, fmt.Errorf("seed actor %s: %w", a.Login, err)
		}
		demo.Actors = append(demo.Actors, a.Login)
	}
	inactive := false
	if _, err := svc.UpdateActor(ctx, "edu", catalog.ActorUpdate{Active: &inactive}); err != nil {
		return nil, fmt.Errorf("seed deactivate edu: %w", err)
	}

	for _, g := range []ledger.ClientGroup{{Code: "IND", Description: "Industry"}, {Code: "RET", Description: "Retail"}} {
		if _, err := svc.CreateClientGroup(ctx, g); err != nil {
			return nil, fmt.Errorf("seed client group %s: %w", g.Code, err)
		}
	}
	for _, g := range []ledger.TaskGroup{{Code: "AUD", Name: "Audit"}, {Code: "TAX", Name: "Tax filing"}} {
		if _, err := svc.CreateTaskGroup(ctx, g); err != nil {
			return nil, fmt.Errorf("seed task group %s: %w", g.Code, err)
		}
	}

	clients := []struct {
		key string
		in  catalog.ClientInput
	}{
		{"acme", catalog.ClientInput{TaxID: "12.345.678/0001-95", Name: "ACME Industrial", GroupCode: "IND"}},
		{"globex", catalog.ClientInput{TaxID: "98.765.432/0001-10", Name: "Globex Varejo", GroupCode: "RET"}},
		{"joao", catalog.ClientInput{TaxID: "123.456.789-09", Name: "Joao Silva"}},
	}
	for _, c := range clients {
		created, err := svc.CreateClient(ctx, c.in)
		if err != nil {
			return nil, fmt.Errorf("seed client %s: %w", c.key, err)
		}
		demo.Clients[c.key] = created.TaxID
	}

	tasks := []struct {
		key, client, group, name string
		estimate                 int64
	}{
		{"acme-audit", "acme", "AUD", "Annual audit", 120},
		{"acme-tax", "acme", "TAX", "Monthly tax filing", 16},
		{"globex-audit", "globex", "AUD", "Inventory audit", 40},
		{"joao-tax", "joao", "TAX", "Income tax return", 4},
	}
	for _, t := range tasks {
		created, err := svc.CreateTask(ctx, catalog.TaskInput{
			ClientTaxID:   string(demo.Clients[t.client]),
			GroupCode:     t.group,
			Name:          t.name,
			EstimateHours: decimal.NewFromInt(t.estimate),
			Priority:      "normal",
		})
		if err != nil {
			return nil, fmt.Errorf("seed task %s: %w", t.key, err)
		}
		demo.Tasks[t.key] = created
	}

	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location()).AddDate(0, -1, 0)
	sessions := []struct {
		actor  ledger.ActorID
		task   string
		day    int
		from   time.Duration
		length time.Duration
	}{
		{"ana", "acme-audit", 3, 9 * time.Hour, 3*time.Hour + 30*time.Minute},
		{"ana", "acme-tax", 4, 14 * time.Hour, 2 * time.Hour},
		{"ana", "joao-tax", 5, 10 * time.Hour, 45 * time.Minute},
		{"bruno", "globex-audit", 3, 8 * time.Hour, 6 * time.Hour},
		{"bruno", "acme-tax", 6, 13 * time.Hour, 90 * time.Minute},
		{"davi", "acme-audit", 7, 9 * time.Hour, 4 * time.Hour},
		{"carla", "globex-audit", 10, 15 * time.Hour, time.Hour},
	}
	for _, s := range sessions {
		task := demo.Tasks[s.task]
		start := first.AddDate(0, 0, s.day-1).Add(s.from)
		created, err := machine.RegisterBackdated(ctx, tracking.BackdatedInput{
			Actor:  s.actor,
			Client: task.ClientID,
			Task:   task.ID,
			Start:  start,
			End:    start.Add(s.length),
			Note:   "seeded",
		})
		if err != nil {
			return nil, fmt.Errorf("seed session for %s: %w", s.actor, err)
		}
		demo.Sessions = append(demo.Sessions, created)
	}
	return demo, nil
}
