/*
Package report aggregates finished work sessions into role-scoped reports.

HIERARCHY:
  client group → client → actor (display name) → task group, with the
  measured hours summed at every level.

DETERMINISM:
  Durations are summed as integer nanoseconds and converted to hours
  (rounded to two places) only when a node is emitted. Every level is
  sorted by display label, then by key. Sessions whose client has no group
  fall under UngroupedLabel.

SCOPE:
  Every query takes an access.Scope. Rows of actors outside the scope are
  never read; an Actor filter naming someone outside the scope yields an
  empty report rather than an error.

MEASURE:
  Worked time (pauses excluded) by default. Total elapsed time is available
  with MeasureTotal.
*/
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/hours-engine/ledger"
)

// =============================================================================
// MEASURE
// =============================================================================

type Measure string

const (
	MeasureWorked Measure = "worked"
	MeasureTotal  Measure = "total"
)

func ParseMeasure(s string) (Measure, error) {
	switch Measure(s) {
	case "", MeasureWorked:
		return MeasureWorked, nil
	case MeasureTotal:
		return MeasureTotal, nil
	}
	return "", &ledger.ValidationError{Field: "measure", Message: "must be worked or total"}
}

// UngroupedLabel is the label of clients without a client group.
const UngroupedLabel = "(ungrouped)"

// =============================================================================
// SOURCE - What the engine reads
// =============================================================================

// Row is one session joined with its actor, client and task metadata.
type Row struct {
	SessionID       ledger.SessionID
	ActorID         ledger.ActorID
	ActorName       string
	Department      string
	ClientID        ledger.ClientID
	ClientName      string
	ClientGroup     string // empty when the client has no group
	ClientGroupName string
	TaskID          ledger.TaskID
	TaskName        string
	TaskGroup       string
	TaskGroupName   string
	Status          ledger.Status
	StartedAt       time.Time
	Total           time.Duration
	Paused          time.Duration
	Worked          time.Duration
}

func (r Row) measure(m Measure) time.Duration {
	if m == MeasureTotal {
		return r.Total
	}
	return r.Worked
}

// Query restricts rows at the source. Actors is never empty; the engine
// returns early for an empty scope.
type Query struct {
	Actors       []ledger.ActorID
	Period       Period
	FinishedOnly bool
}

type Source interface {
	Rows(ctx context.Context, q Query) ([]Row, error)
}

// Catalog feeds the filter options.
type Catalog interface {
	ListClientGroups(ctx context.Context) ([]ledger.ClientGroup, error)
	ListTaskGroups(ctx context.Context) ([]ledger.TaskGroup, error)
}

// =============================================================================
// FILTERS AND OUTPUT
// =============================================================================

// Filters are all optional; zero values do not filter.
type Filters struct {
	Year        int
	Month       int
	Department  string
	Actor       ledger.ActorID
	ClientGroup string
	TaskGroup   string
	Measure     Measure
}

func (f Filters) Validate() error {
	if f.Month < 0 || f.Month > 12 {
		return &ledger.ValidationError{Field: "month", Message: "must be between 1 and 12"}
	}
	if f.Year < 0 || f.Year > 9999 {
		return &ledger.ValidationError{Field: "year", Message: "out of range"}
	}
	_, err := ParseMeasure(string(f.Measure))
	return err
}

type Report struct {
	Measure  Measure
	Hours    decimal.Decimal
	Sessions int
	Groups   []GroupNode
}

type GroupNode struct {
	Code    string
	Label   string
	Hours   decimal.Decimal
	Clients []ClientNode
}

type ClientNode struct {
	ClientID ledger.ClientID
	Label    string
	Hours    decimal.Decimal
	Actors   []ActorNode
}

type ActorNode struct {
	Login      ledger.ActorID
	Label      string
	Hours      decimal.Decimal
	TaskGroups []TaskGroupLeaf
}

type TaskGroupLeaf struct {
	Code  string
	Label string
	Hours decimal.Decimal
}

// Summary feeds the dashboard.
type Summary struct {
	Sessions     int
	Finished     int
	Open         int
	ByDepartment []Count
	ByTaskGroup  []Total
	Monthly      []MonthTotal
}

type Count struct {
	Label    string
	Sessions int
}

type Total struct {
	Label string
	Hours decimal.Decimal
}

type MonthTotal struct {
	Month time.Month
	Hours decimal.Decimal
}

// Options lists what the viewer can filter by.
type Options struct {
	Departments  []string
	Actors       []ActorOption
	ClientGroups []ledger.ClientGroup
	TaskGroups   []ledger.TaskGroup
}

type ActorOption struct {
	Login ledger.ActorID
	Name  string
}
