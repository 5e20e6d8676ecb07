/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TIMES AND HOURS:
  Times are RFC 3339 strings. Hours are decimal strings with two places
  ("2.50"), rounded once from exact nanosecond sums.

VALIDATION:
  Validation is done in the domain services, not in DTOs. DTOs are pure
  data carriers.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/hours-engine/alerts"
	"github.com/warp/hours-engine/ledger"
	"github.com/warp/hours-engine/report"
	"github.com/warp/hours-engine/tracking"
)

// =============================================================================
// SESSIONS
// =============================================================================

type StartSessionRequest struct {
	Client string `json:"client"`
	Task   string `json:"task"`
	Note   string `json:"note,omitempty"`
}

type BackdatedSessionRequest struct {
	Client string `json:"client"`
	Task   string `json:"task"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Note   string `json:"note,omitempty"`
}

type SessionDTO struct {
	ID          string           `json:"id"`
	Actor       string           `json:"actor"`
	Client      string           `json:"client"`
	Task        string           `json:"task"`
	Status      string           `json:"status"`
	StartedAt   string           `json:"started_at"`
	FinishedAt  *string          `json:"finished_at,omitempty"`
	Note        string           `json:"note,omitempty"`
	Backdated   bool             `json:"backdated,omitempty"`
	TotalHours  *decimal.Decimal `json:"total_hours,omitempty"`
	PausedHours *decimal.Decimal `json:"paused_hours,omitempty"`
	WorkedHours *decimal.Decimal `json:"worked_hours,omitempty"`
}

type PauseDTO struct {
	ID        string  `json:"id"`
	SessionID string  `json:"session_id"`
	PausedAt  string  `json:"paused_at"`
	ResumedAt *string `json:"resumed_at,omitempty"`
}

type ActiveSessionDTO struct {
	Session     SessionDTO      `json:"session"`
	OpenPause   *PauseDTO       `json:"open_pause,omitempty"`
	Pauses      []PauseDTO      `json:"pauses"`
	AsOf        string          `json:"as_of"`
	TotalHours  decimal.Decimal `json:"total_hours"`
	PausedHours decimal.Decimal `json:"paused_hours"`
	WorkedHours decimal.Decimal `json:"worked_hours"`
}

func toSessionDTO(s ledger.WorkSession) SessionDTO {
	dto := SessionDTO{
		ID:        string(s.ID),
		Actor:     string(s.ActorID),
		Client:    string(s.ClientID),
		Task:      string(s.TaskID),
		Status:    string(s.Status),
		StartedAt: formatTime(s.StartedAt),
		Note:      s.Note,
		Backdated: s.Backdated,
	}
	if s.FinishedAt != nil {
		dto.FinishedAt = strPtr(formatTime(*s.FinishedAt))
		total, paused, worked := s.TotalHours(), s.PausedHours(), s.WorkedHours()
		dto.TotalHours, dto.PausedHours, dto.WorkedHours = &total, &paused, &worked
	}
	return dto
}

func toPauseDTO(p ledger.PauseInterval) PauseDTO {
	dto := PauseDTO{ID: string(p.ID), SessionID: string(p.SessionID), PausedAt: formatTime(p.PausedAt)}
	if p.ResumedAt != nil {
		dto.ResumedAt = strPtr(formatTime(*p.ResumedAt))
	}
	return dto
}

func toActiveDTO(v *tracking.ActiveView) ActiveSessionDTO {
	dto := ActiveSessionDTO{
		Session:     toSessionDTO(v.Session),
		Pauses:      make([]PauseDTO, 0, len(v.Pauses)),
		AsOf:        formatTime(v.AsOf),
		TotalHours:  ledger.Hours(v.Elapsed.Total),
		PausedHours: ledger.Hours(v.Elapsed.Paused),
		WorkedHours: ledger.Hours(v.Elapsed.Worked),
	}
	for _, p := range v.Pauses {
		dto.Pauses = append(dto.Pauses, toPauseDTO(p))
	}
	if v.OpenPause != nil {
		p := toPauseDTO(*v.OpenPause)
		dto.OpenPause = &p
	}
	return dto
}

// =============================================================================
// SCOPE AND REPORTS
// =============================================================================

type ScopeDTO struct {
	Viewer string   `json:"viewer"`
	Actors []string `json:"actors"`
}

type ReportRequest struct {
	Year        int    `json:"year,omitempty"`
	Month       int    `json:"month,omitempty"`
	Department  string `json:"department,omitempty"`
	Actor       string `json:"actor,omitempty"`
	ClientGroup string `json:"client_group,omitempty"`
	TaskGroup   string `json:"task_group,omitempty"`
	Measure     string `json:"measure,omitempty"`
}

func (r ReportRequest) filters() report.Filters {
	return report.Filters{
		Year:        r.Year,
		Month:       r.Month,
		Department:  r.Department,
		Actor:       ledger.ActorID(r.Actor),
		ClientGroup: r.ClientGroup,
		TaskGroup:   r.TaskGroup,
		Measure:     report.Measure(r.Measure),
	}
}

type SummaryRequest struct {
	Year  int `json:"year"`
	Month int `json:"month,omitempty"`
}

type ReportDTO struct {
	Measure  string          `json:"measure"`
	Hours    decimal.Decimal `json:"hours"`
	Sessions int             `json:"sessions"`
	Groups   []ReportNodeDTO `json:"groups"`
}

// ReportNodeDTO is one level of the hierarchy; Children is empty at the
// task group leaves.
type ReportNodeDTO struct {
	Key      string          `json:"key"`
	Label    string          `json:"label"`
	Hours    decimal.Decimal `json:"hours"`
	Children []ReportNodeDTO `json:"children,omitempty"`
}

func toReportDTO(r report.Report) ReportDTO {
	dto := ReportDTO{Measure: string(r.Measure), Hours: r.Hours, Sessions: r.Sessions, Groups: []ReportNodeDTO{}}
	for _, g := range r.Groups {
		gn := ReportNodeDTO{Key: g.Code, Label: g.Label, Hours: g.Hours}
		for _, c := range g.Clients {
			cn := ReportNodeDTO{Key: string(c.ClientID), Label: c.Label, Hours: c.Hours}
			for _, a := range c.Actors {
				an := ReportNodeDTO{Key: string(a.Login), Label: a.Label, Hours: a.Hours}
				for _, l := range a.TaskGroups {
					an.Children = append(an.Children, ReportNodeDTO{Key: l.Code, Label: l.Label, Hours: l.Hours})
				}
				cn.Children = append(cn.Children, an)
			}
			gn.Children = append(gn.Children, cn)
		}
		dto.Groups = append(dto.Groups, gn)
	}
	return dto
}

type LabelCountDTO struct {
	Label    string `json:"label"`
	Sessions int    `json:"sessions"`
}

type LabelHoursDTO struct {
	Label string          `json:"label"`
	Hours decimal.Decimal `json:"hours"`
}

type SummaryDTO struct {
	Sessions     int             `json:"sessions"`
	Finished     int             `json:"finished"`
	Open         int             `json:"open"`
	ByDepartment []LabelCountDTO `json:"by_department"`
	ByTaskGroup  []LabelHoursDTO `json:"by_task_group"`
	Monthly      []LabelHoursDTO `json:"monthly"`
}

func toSummaryDTO(s report.Summary) SummaryDTO {
	dto := SummaryDTO{
		Sessions:     s.Sessions,
		Finished:     s.Finished,
		Open:         s.Open,
		ByDepartment: []LabelCountDTO{},
		ByTaskGroup:  []LabelHoursDTO{},
		Monthly:      []LabelHoursDTO{},
	}
	for _, c := range s.ByDepartment {
		dto.ByDepartment = append(dto.ByDepartment, LabelCountDTO{Label: c.Label, Sessions: c.Sessions})
	}
	for _, t := range s.ByTaskGroup {
		dto.ByTaskGroup = append(dto.ByTaskGroup, LabelHoursDTO{Label: t.Label, Hours: t.Hours})
	}
	for _, m := range s.Monthly {
		dto.Monthly = append(dto.Monthly, LabelHoursDTO{Label: m.Month.String(), Hours: m.Hours})
	}
	return dto
}

type OptionsDTO struct {
	Departments  []string         `json:"departments"`
	Actors       []ActorOptionDTO `json:"actors"`
	ClientGroups []ClientGroupDTO `json:"client_groups"`
	TaskGroups   []TaskGroupDTO   `json:"task_groups"`
}

type ActorOptionDTO struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

func toOptionsDTO(o report.Options) OptionsDTO {
	dto := OptionsDTO{
		Departments:  append([]string{}, o.Departments...),
		Actors:       []ActorOptionDTO{},
		ClientGroups: []ClientGroupDTO{},
		TaskGroups:   []TaskGroupDTO{},
	}
	for _, a := range o.Actors {
		dto.Actors = append(dto.Actors, ActorOptionDTO{Login: string(a.Login), Name: a.Name})
	}
	for _, g := range o.ClientGroups {
		dto.ClientGroups = append(dto.ClientGroups, ClientGroupDTO(g))
	}
	for _, g := range o.TaskGroups {
		dto.TaskGroups = append(dto.TaskGroups, TaskGroupDTO(g))
	}
	return dto
}

// =============================================================================
// NOTIFICATIONS AND ALERTS
// =============================================================================

type NotificationDTO struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Channel   string `json:"channel"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

func toNotificationDTO(n alerts.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID,
		Kind:      string(n.Kind),
		Message:   n.Message,
		Channel:   string(n.Channel),
		Read:      n.Read,
		CreatedAt: formatTime(n.CreatedAt),
	}
}

type MarkReadDTO struct {
	Marked int `json:"marked"`
}

// AlertRunRequest triggers the open-session job. At defaults to now.
type AlertRunRequest struct {
	At string `json:"at,omitempty"`
}

type AlertRunDTO struct {
	TriggerKey string `json:"trigger_key"`
	Sessions   int    `json:"sessions"`
	Actors     int    `json:"actors"`
	Notified   int    `json:"notified"`
	Skipped    int    `json:"skipped"`
}

// =============================================================================
// CATALOG
// =============================================================================

type ClientGroupDTO struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

type TaskGroupDTO struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type ClientDTO struct {
	TaxID     string  `json:"tax_id"`
	Name      string  `json:"name"`
	GroupCode *string `json:"group_code,omitempty"`
}

type CreateClientRequest struct {
	TaxID     string `json:"tax_id"`
	Name      string `json:"name"`
	GroupCode string `json:"group_code,omitempty"`
}

func toClientDTO(c ledger.Client) ClientDTO {
	return ClientDTO{TaxID: string(c.TaxID), Name: c.Name, GroupCode: c.GroupCode}
}

type TaskDTO struct {
	ID            string          `json:"id"`
	Client        string          `json:"client"`
	GroupCode     string          `json:"group_code"`
	Name          string          `json:"name"`
	Collaborators []string        `json:"collaborators"`
	EstimateHours decimal.Decimal `json:"estimate_hours"`
	Priority      string          `json:"priority,omitempty"`
}

type CreateTaskRequest struct {
	Client        string          `json:"client"`
	GroupCode     string          `json:"group_code"`
	Name          string          `json:"name"`
	Collaborators []string        `json:"collaborators,omitempty"`
	EstimateHours decimal.Decimal `json:"estimate_hours"`
	Priority      string          `json:"priority,omitempty"`
}

func toTaskDTO(t ledger.Task) TaskDTO {
	dto := TaskDTO{
		ID:            string(t.ID),
		Client:        string(t.ClientID),
		GroupCode:     t.GroupCode,
		Name:          t.Name,
		Collaborators: []string{},
		EstimateHours: t.EstimateHours,
		Priority:      t.Priority,
	}
	for _, c := range t.Collaborators {
		dto.Collaborators = append(dto.Collaborators, string(c))
	}
	return dto
}

// =============================================================================
// ACTORS
// =============================================================================

type ActorDTO struct {
	Login        string  `json:"login"`
	DisplayName  string  `json:"display_name"`
	Email        string  `json:"email,omitempty"`
	Department   string  `json:"department,omitempty"`
	Role         string  `json:"role"`
	ManagerLogin *string `json:"manager_login,omitempty"`
	Active       bool    `json:"active"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

type CreateActorRequest struct {
	Login        string  `json:"login"`
	DisplayName  string  `json:"display_name"`
	Email        string  `json:"email,omitempty"`
	Department   string  `json:"department,omitempty"`
	Role         string  `json:"role"`
	ManagerLogin *string `json:"manager_login,omitempty"`
}

// UpdateActorRequest changes only the fields present in the body.
type UpdateActorRequest struct {
	DisplayName  *string `json:"display_name,omitempty"`
	Email        *string `json:"email,omitempty"`
	Department   *string `json:"department,omitempty"`
	Role         *string `json:"role,omitempty"`
	ManagerLogin *string `json:"manager_login,omitempty"`
	ClearManager bool    `json:"clear_manager,omitempty"`
	Active       *bool   `json:"active,omitempty"`
}

func toActorDTO(a ledger.Actor) ActorDTO {
	dto := ActorDTO{
		Login:       string(a.Login),
		DisplayName: a.DisplayName,
		Email:       a.Email,
		Department:  a.Department,
		Role:        string(a.Role),
		Active:      a.Active,
	}
	if a.ManagerLogin != nil {
		dto.ManagerLogin = strPtr(string(*a.ManagerLogin))
	}
	if !a.CreatedAt.IsZero() {
		dto.CreatedAt = formatTime(a.CreatedAt)
	}
	return dto
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response. Code is one of
// not_found, invalid_state, conflict, validation, transient_store,
// unauthorized, forbidden, bad_request or internal.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func strPtr(s string) *string {
	return &s
}
