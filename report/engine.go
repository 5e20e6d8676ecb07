package report

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/hours-engine/access"
	"github.com/warp/hours-engine/ledger"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	source    Source
	catalog   Catalog
	directory ledger.Directory
	loc       *time.Location
	logger    *zap.Logger
}

// NewEngine builds an engine. Year/month filters are evaluated in loc
// (UTC when nil).
func NewEngine(source Source, catalog Catalog, directory ledger.Directory, loc *time.Location, logger *zap.Logger) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{source: source, catalog: catalog, directory: directory, loc: loc, logger: logger}
}

// =============================================================================
// AGGREGATE
// =============================================================================

// Aggregate sums the measure of finished sessions in scope into the
// client group → client → actor → task group hierarchy.
func (e *Engine) Aggregate(ctx context.Context, scope access.Scope, f Filters) (Report, error) {
	if err := f.Validate(); err != nil {
		return Report{}, err
	}
	measure, _ := ParseMeasure(string(f.Measure))
	out := Report{Measure: measure, Hours: ledger.Hours(0)}

	if f.Actor != "" {
		scope = scope.Narrow(f.Actor)
	}
	if scope.Empty() {
		return out, nil
	}

	rows, err := e.source.Rows(ctx, Query{
		Actors:       scope.Logins(),
		Period:       PeriodFor(f.Year, f.Month, e.loc),
		FinishedOnly: true,
	})
	if err != nil {
		return Report{}, ledger.Transient("aggregate", err)
	}

	root := newNode()
	for _, r := range rows {
		if r.Status != ledger.StatusFinished || !scope.Contains(r.ActorID) || !e.matches(r, f) {
			continue
		}
		d := r.measure(measure)
		groupLabel := r.ClientGroupName
		if r.ClientGroup == "" {
			groupLabel = UngroupedLabel
		} else if groupLabel == "" {
			groupLabel = r.ClientGroup
		}
		g := root.child(r.ClientGroup, groupLabel)
		c := g.child(string(r.ClientID), labelOr(r.ClientName, string(r.ClientID)))
		a := c.child(string(r.ActorID), labelOr(r.ActorName, string(r.ActorID)))
		l := a.child(r.TaskGroup, labelOr(r.TaskGroupName, r.TaskGroup))

		root.sum += d
		g.sum += d
		c.sum += d
		a.sum += d
		l.sum += d
		out.Sessions++
	}

	out.Hours = ledger.Hours(root.sum)
	for _, g := range root.sorted() {
		gn := GroupNode{Code: g.key, Label: g.label, Hours: ledger.Hours(g.sum)}
		for _, c := range g.sorted() {
			cn := ClientNode{ClientID: ledger.ClientID(c.key), Label: c.label, Hours: ledger.Hours(c.sum)}
			for _, a := range c.sorted() {
				an := ActorNode{Login: ledger.ActorID(a.key), Label: a.label, Hours: ledger.Hours(a.sum)}
				for _, l := range a.sorted() {
					an.TaskGroups = append(an.TaskGroups, TaskGroupLeaf{Code: l.key, Label: l.label, Hours: ledger.Hours(l.sum)})
				}
				cn.Actors = append(cn.Actors, an)
			}
			gn.Clients = append(gn.Clients, cn)
		}
		out.Groups = append(out.Groups, gn)
	}

	e.logger.Debug("report aggregated",
		zap.String("viewer", string(scope.Viewer)),
		zap.Int("scope", scope.Len()),
		zap.Int("rows", len(rows)),
		zap.Int("sessions", out.Sessions),
	)
	return out, nil
}

func (e *Engine) matches(r Row, f Filters) bool {
	started := r.StartedAt.In(e.loc)
	switch {
	case f.Year != 0 && started.Year() != f.Year:
		return false
	case f.Month != 0 && int(started.Month()) != f.Month:
		return false
	case f.Department != "" && r.Department != f.Department:
		return false
	case f.ClientGroup != "" && r.ClientGroup != f.ClientGroup:
		return false
	case f.TaskGroup != "" && r.TaskGroup != f.TaskGroup:
		return false
	}
	return true
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summarize builds dashboard figures over every session in scope that
// started in the given year (and month, when set). Counts include open
// sessions; hours come from finished ones.
func (e *Engine) Summarize(ctx context.Context, scope access.Scope, year, month int) (Summary, error) {
	f := Filters{Year: year, Month: month}
	if err := f.Validate(); err != nil {
		return Summary{}, err
	}
	if year == 0 {
		return Summary{}, &ledger.ValidationError{Field: "year", Message: "is required"}
	}
	var out Summary
	if scope.Empty() {
		return out, nil
	}

	rows, err := e.source.Rows(ctx, Query{Actors: scope.Logins(), Period: PeriodFor(year, month, e.loc)})
	if err != nil {
		return Summary{}, ledger.Transient("summarize", err)
	}

	byDept := map[string]int{}
	byTaskGroup := map[string]time.Duration{}
	byMonth := map[time.Month]time.Duration{}
	for _, r := range rows {
		if !scope.Contains(r.ActorID) || !e.matches(r, f) {
			continue
		}
		out.Sessions++
		byDept[labelOr(r.Department, UngroupedLabel)]++
		if r.Status != ledger.StatusFinished {
			out.Open++
			continue
		}
		out.Finished++
		byTaskGroup[labelOr(r.TaskGroupName, r.TaskGroup)] += r.Worked
		byMonth[r.StartedAt.In(e.loc).Month()] += r.Worked
	}

	for _, label := range sortedKeys(byDept) {
		out.ByDepartment = append(out.ByDepartment, Count{Label: label, Sessions: byDept[label]})
	}
	for _, label := range sortedKeys(byTaskGroup) {
		out.ByTaskGroup = append(out.ByTaskGroup, Total{Label: label, Hours: ledger.Hours(byTaskGroup[label])})
	}
	for m := time.January; m <= time.December; m++ {
		if d, ok := byMonth[m]; ok {
			out.Monthly = append(out.Monthly, MonthTotal{Month: m, Hours: ledger.Hours(d)})
		}
	}
	return out, nil
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options lists departments and actors visible to the scope, plus the
// client and task group catalogs.
func (e *Engine) Options(ctx context.Context, scope access.Scope) (Options, error) {
	var (
		out    Options
		actors []ledger.Actor
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		actors, err = e.directory.ListActors(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		out.ClientGroups, err = e.catalog.ListClientGroups(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		out.TaskGroups, err = e.catalog.ListTaskGroups(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Options{}, ledger.Transient("report options", err)
	}

	depts := map[string]struct{}{}
	for _, a := range actors {
		if !scope.Contains(a.Login) {
			continue
		}
		out.Actors = append(out.Actors, ActorOption{Login: a.Login, Name: labelOr(a.DisplayName, string(a.Login))})
		if a.Department != "" {
			depts[a.Department] = struct{}{}
		}
	}
	sort.Slice(out.Actors, func(i, j int) bool {
		if out.Actors[i].Name != out.Actors[j].Name {
			return out.Actors[i].Name < out.Actors[j].Name
		}
		return out.Actors[i].Login < out.Actors[j].Login
	})
	out.Departments = sortedKeys(depts)
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

type node struct {
	key      string
	label    string
	sum      time.Duration
	children map[string]*node
}

func newNode() *node { return &node{children: map[string]*node{}} }

func (n *node) child(key, label string) *node {
	c, ok := n.children[key]
	if !ok {
		c = newNode()
		c.key, c.label = key, label
		n.children[key] = c
	}
	return c
}

// sorted orders children by label, then key.
func (n *node) sorted() []*node {
	out := make([]*node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].label != out[j].label {
			return out[i].label < out[j].label
		}
		return out[i].key < out[j].key
	})
	return out
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
