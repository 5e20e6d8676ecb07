package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// CATALOG - What sessions are booked against
// =============================================================================

// ClientGroup clusters clients for reporting (the top report level).
type ClientGroup struct {
	Code        string
	Description string
}

// Client is keyed by its normalized tax id.
type Client struct {
	TaxID     ClientID
	Name      string
	GroupCode *string
}

// TaskGroup is the activity category a task belongs to.
type TaskGroup struct {
	Code string
	Name string
}

// Task is a unit of work for one client.
type Task struct {
	ID            TaskID
	ClientID      ClientID
	GroupCode     string
	Name          string
	Collaborators []ActorID
	EstimateHours decimal.Decimal
	Priority      string
}
