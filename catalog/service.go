package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/hours-engine/ledger"
)

const defaultSearchLimit = 20

type Service struct {
	store  Store
	clock  ledger.Clock
	logger *zap.Logger
}

func NewService(store Store, clock ledger.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, clock: clock, logger: logger}
}

// =============================================================================
// CLIENTS
// =============================================================================

type ClientInput struct {
	TaxID     string
	Name      string
	GroupCode string
}

func (s *Service) CreateClient(ctx context.Context, in ClientInput) (ledger.Client, error) {
	id, err := NormalizeTaxID(in.TaxID)
	if err != nil {
		return ledger.Client{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ledger.Client{}, &ledger.ValidationError{Field: "name", Message: "is required"}
	}

	c := ledger.Client{TaxID: id, Name: name}
	if code := strings.TrimSpace(in.GroupCode); code != "" {
		if _, err := s.store.GetClientGroup(ctx, code); err != nil {
			return ledger.Client{}, ledger.Transient("create client", err)
		}
		c.GroupCode = &code
	}

	if err := s.store.CreateClient(ctx, c); err != nil {
		return ledger.Client{}, ledger.Transient("create client", err)
	}
	s.logger.Info("client created", zap.String("client", string(id)))
	return c, nil
}

func (s *Service) GetClient(ctx context.Context, raw string) (ledger.Client, error) {
	id, err := NormalizeTaxID(raw)
	if err != nil {
		return ledger.Client{}, err
	}
	c, err := s.store.GetClient(ctx, id)
	return c, ledger.Transient("get client", err)
}

// SearchClients matches by name fragment or tax id digits.
func (s *Service) SearchClients(ctx context.Context, query string, limit int) ([]ledger.Client, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	clients, err := s.store.SearchClients(ctx, strings.TrimSpace(query), limit)
	return clients, ledger.Transient("search clients", err)
}

// DeleteClient fails with ConflictError while any session books the client.
func (s *Service) DeleteClient(ctx context.Context, raw string) error {
	id, err := NormalizeTaxID(raw)
	if err != nil {
		return err
	}
	n, err := s.store.CountSessions(ctx, id, "")
	if err != nil {
		return ledger.Transient("delete client", err)
	}
	if n > 0 {
		return referenced("client", string(id), n)
	}
	if err := s.store.DeleteClient(ctx, id); err != nil {
		return ledger.Transient("delete client", err)
	}
	s.logger.Info("client deleted", zap.String("client", string(id)))
	return nil
}

// =============================================================================
// GROUPS
// =============================================================================

func (s *Service) CreateClientGroup(ctx context.Context, g ledger.ClientGroup) (ledger.ClientGroup, error) {
	g.Code = strings.TrimSpace(g.Code)
	g.Description = strings.TrimSpace(g.Description)
	if g.Code == "" {
		return ledger.ClientGroup{}, &ledger.ValidationError{Field: "code", Message: "is required"}
	}
	if err := s.store.CreateClientGroup(ctx, g); err != nil {
		return ledger.ClientGroup{}, ledger.Transient("create client group", err)
	}
	return g, nil
}

func (s *Service) CreateTaskGroup(ctx context.Context, g ledger.TaskGroup) (ledger.TaskGroup, error) {
	g.Code = strings.TrimSpace(g.Code)
	g.Name = strings.TrimSpace(g.Name)
	switch {
	case g.Code == "":
		return ledger.TaskGroup{}, &ledger.ValidationError{Field: "code", Message: "is required"}
	case g.Name == "":
		return ledger.TaskGroup{}, &ledger.ValidationError{Field: "name", Message: "is required"}
	}
	if err := s.store.CreateTaskGroup(ctx, g); err != nil {
		return ledger.TaskGroup{}, ledger.Transient("create task group", err)
	}
	return g, nil
}

func (s *Service) ClientGroups(ctx context.Context) ([]ledger.ClientGroup, error) {
	gs, err := s.store.ListClientGroups(ctx)
	return gs, ledger.Transient("list client groups", err)
}

func (s *Service) TaskGroups(ctx context.Context) ([]ledger.TaskGroup, error) {
	gs, err := s.store.ListTaskGroups(ctx)
	return gs, ledger.Transient("list task groups", err)
}

// =============================================================================
// TASKS
// =============================================================================

type TaskInput struct {
	ClientTaxID   string
	GroupCode     string
	Name          string
	Collaborators []ledger.ActorID
	EstimateHours decimal.Decimal
	Priority      string
}

func (s *Service) CreateTask(ctx context.Context, in TaskInput) (ledger.Task, error) {
	client, err := NormalizeTaxID(in.ClientTaxID)
	if err != nil {
		return ledger.Task{}, err
	}
	t := ledger.Task{
		ID:            ledger.TaskID(uuid.NewString()),
		ClientID:      client,
		GroupCode:     strings.TrimSpace(in.GroupCode),
		Name:          strings.TrimSpace(in.Name),
		EstimateHours: in.EstimateHours,
		Priority:      strings.TrimSpace(in.Priority),
	}
	switch {
	case t.Name == "":
		return ledger.Task{}, &ledger.ValidationError{Field: "name", Message: "is required"}
	case t.GroupCode == "":
		return ledger.Task{}, &ledger.ValidationError{Field: "group_code", Message: "is required"}
	case t.EstimateHours.IsNegative():
		return ledger.Task{}, &ledger.ValidationError{Field: "estimate_hours", Message: "cannot be negative"}
	case len(in.Collaborators) > 2:
		return ledger.Task{}, &ledger.ValidationError{Field: "collaborators", Message: "at most two collaborators"}
	}

	if _, err := s.store.GetClient(ctx, client); err != nil {
		return ledger.Task{}, ledger.Transient("create task", err)
	}
	if _, err := s.store.GetTaskGroup(ctx, t.GroupCode); err != nil {
		return ledger.Task{}, ledger.Transient("create task", err)
	}
	for _, login := range in.Collaborators {
		if _, err := s.store.GetActor(ctx, login); err != nil {
			return ledger.Task{}, ledger.Transient("create task", err)
		}
		t.Collaborators = append(t.Collaborators, login)
	}

	if err := s.store.CreateTask(ctx, t); err != nil {
		return ledger.Task{}, ledger.Transient("create task", err)
	}
	s.logger.Info("task created", zap.String("task", string(t.ID)), zap.String("client", string(client)))
	return t, nil
}

func (s *Service) TasksForClient(ctx context.Context, raw string) ([]ledger.Task, error) {
	id, err := NormalizeTaxID(raw)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.TasksByClient(ctx, id)
	return tasks, ledger.Transient("list tasks", err)
}

// DeleteTask fails with ConflictError while any session books the task.
func (s *Service) DeleteTask(ctx context.Context, id ledger.TaskID) error {
	if _, err := s.store.GetTask(ctx, id); err != nil {
		return ledger.Transient("delete task", err)
	}
	n, err := s.store.CountSessions(ctx, "", id)
	if err != nil {
		return ledger.Transient("delete task", err)
	}
	if n > 0 {
		return referenced("task", string(id), n)
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return ledger.Transient("delete task", err)
	}
	s.logger.Info("task deleted", zap.String("task", string(id)))
	return nil
}

func referenced(kind, id string, n int) error {
	noun := "sessions"
	if n == 1 {
		noun = "session"
	}
	return &ledger.ConflictError{
		Constraint: ledger.ConstraintReferenced,
		Detail:     fmt.Sprintf("%s %s is referenced by %d work %s", kind, id, n, noun),
	}
}

// =============================================================================
// ACTORS
// =============================================================================

func (s *Service) CreateActor(ctx context.Context, a ledger.Actor) (ledger.Actor, error) {
	a.Login = ledger.ActorID(strings.TrimSpace(string(a.Login)))
	a.DisplayName = strings.TrimSpace(a.DisplayName)
	if err := a.Validate(); err != nil {
		return ledger.Actor{}, err
	}
	if err := s.checkManager(ctx, a); err != nil {
		return ledger.Actor{}, err
	}
	a.Active = true
	a.CreatedAt = s.clock.Now()
	if err := s.store.CreateActor(ctx, a); err != nil {
		return ledger.Actor{}, ledger.Transient("create actor", err)
	}
	s.logger.Info("actor created", zap.String("actor", string(a.Login)), zap.String("role", string(a.Role)))
	return a, nil
}

// ActorUpdate changes the mutable actor fields; nil leaves a field as is.
// ClearManager removes the manager.
type ActorUpdate struct {
	DisplayName  *string
	Email        *string
	Department   *string
	Role         *ledger.Role
	ManagerLogin *ledger.ActorID
	ClearManager bool
	Active       *bool
}

func (s *Service) UpdateActor(ctx context.Context, login ledger.ActorID, u ActorUpdate) (ledger.Actor, error) {
	a, err := s.store.GetActor(ctx, login)
	if err != nil {
		return ledger.Actor{}, ledger.Transient("update actor", err)
	}
	if u.DisplayName != nil {
		a.DisplayName = strings.TrimSpace(*u.DisplayName)
	}
	if u.Email != nil {
		a.Email = strings.TrimSpace(*u.Email)
	}
	if u.Department != nil {
		a.Department = strings.TrimSpace(*u.Department)
	}
	if u.Role != nil {
		a.Role = *u.Role
	}
	if u.ManagerLogin != nil {
		m := *u.ManagerLogin
		a.ManagerLogin = &m
	}
	if u.ClearManager {
		a.ManagerLogin = nil
	}
	if u.Active != nil {
		a.Active = *u.Active
	}

	if err := a.Validate(); err != nil {
		return ledger.Actor{}, err
	}
	if err := s.checkManager(ctx, a); err != nil {
		return ledger.Actor{}, err
	}
	if err := s.store.UpdateActor(ctx, a); err != nil {
		return ledger.Actor{}, ledger.Transient("update actor", err)
	}
	s.logger.Info("actor updated", zap.String("actor", string(a.Login)), zap.Bool("active", a.Active))
	return a, nil
}

func (s *Service) Actors(ctx context.Context) ([]ledger.Actor, error) {
	actors, err := s.store.ListActors(ctx)
	return actors, ledger.Transient("list actors", err)
}

func (s *Service) checkManager(ctx context.Context, a ledger.Actor) error {
	if a.ManagerLogin == nil {
		return nil
	}
	if _, err := s.store.GetActor(ctx, *a.ManagerLogin); err != nil {
		if ledger.IsNotFound(err) {
			return &ledger.ValidationError{Field: "manager_login", Message: "unknown manager " + string(*a.ManagerLogin)}
		}
		return ledger.Transient("check manager", err)
	}
	return nil
}
