package ledger

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// ROLE - Closed enumeration with capability predicates
// =============================================================================

type Role string

const (
	RoleEmployee    Role = "employee"
	RoleContractor  Role = "contractor"
	RoleCoordinator Role = "coordinator"
	RoleSupervisor  Role = "supervisor"
	RolePartner     Role = "partner"
	RoleAdmin       Role = "admin"
)

// Roles lists every role in ascending order of reach.
var Roles = []Role{RoleEmployee, RoleContractor, RoleCoordinator, RoleSupervisor, RolePartner, RoleAdmin}

// legacyRoles maps the role names stored by the legacy application.
var legacyRoles = map[string]Role{
	"funcionario":           RoleEmployee,
	"funcionário":           RoleEmployee,
	"prestador de servico":  RoleContractor,
	"prestador de serviço":  RoleContractor,
	"prestador_de_servico":  RoleContractor,
	"coordenador":           RoleCoordinator,
	"supervisor":            RoleSupervisor,
	"socio":                 RolePartner,
	"sócio":                 RolePartner,
	"admin":                 RoleAdmin,
	"administrador":         RoleAdmin,
}

// ParseRole accepts canonical names and legacy names, case-insensitively.
func ParseRole(s string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, r := range Roles {
		if string(r) == key {
			return r, nil
		}
	}
	if r, ok := legacyRoles[key]; ok {
		return r, nil
	}
	return "", &ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", s)}
}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// CanViewAll reports whether the role sees every active actor.
func (r Role) CanViewAll() bool {
	switch r {
	case RoleAdmin, RolePartner:
		return true
	}
	return false
}

// CanViewSubordinates reports whether the role sees its direct reports.
func (r Role) CanViewSubordinates() bool {
	switch r {
	case RoleCoordinator, RoleSupervisor:
		return true
	}
	return false
}

// CanAdminister gates catalog, actor and alert-job administration.
func (r Role) CanAdminister() bool {
	return r == RoleAdmin
}

// =============================================================================
// ACTOR
// =============================================================================

// Actor is a tracked employee or contractor. Actors are never removed while
// sessions reference them; Active=false is the soft delete.
type Actor struct {
	Login        ActorID
	DisplayName  string
	Email        string
	Department   string
	Role         Role
	ManagerLogin *ActorID
	Active       bool
	CreatedAt    time.Time
}

// ReportsTo reports whether a's direct manager is login.
func (a Actor) ReportsTo(login ActorID) bool {
	return a.ManagerLogin != nil && *a.ManagerLogin == login
}

func (a Actor) Validate() error {
	if strings.TrimSpace(string(a.Login)) == "" {
		return &ValidationError{Field: "login", Message: "is required"}
	}
	if strings.TrimSpace(a.DisplayName) == "" {
		return &ValidationError{Field: "display_name", Message: "is required"}
	}
	if !a.Role.Valid() {
		return &ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", a.Role)}
	}
	if a.ManagerLogin != nil && *a.ManagerLogin == a.Login {
		return &ValidationError{Field: "manager_login", Message: "an actor cannot manage itself"}
	}
	return nil
}
