/*
Package access resolves which actors' sessions a viewer may read.

POLICY (by role capability):
  CanViewAll           → every active actor
  CanViewSubordinates  → the viewer plus active direct reports (one level)
  otherwise            → the viewer only

Resolve is pure over an Actor snapshot. Resolver wraps it with a Directory
lookup. The snapshot does not need to be read in the same transaction as
ledger writes; a role change becoming visible a little late is acceptable.

Anything that lists or aggregates other actors' data filters through a Scope.
A login outside the scope yields an empty result, never an error.
*/
package access

import (
	"context"
	"sort"

	"github.com/warp/hours-engine/ledger"
)

// =============================================================================
// SCOPE
// =============================================================================

// Scope is the set of actor logins a viewer may see.
type Scope struct {
	Viewer ledger.ActorID
	logins map[ledger.ActorID]struct{}
}

func NewScope(viewer ledger.ActorID, logins ...ledger.ActorID) Scope {
	s := Scope{Viewer: viewer, logins: make(map[ledger.ActorID]struct{}, len(logins))}
	for _, l := range logins {
		s.logins[l] = struct{}{}
	}
	return s
}

func (s Scope) Contains(login ledger.ActorID) bool {
	_, ok := s.logins[login]
	return ok
}

func (s Scope) Len() int { return len(s.logins) }

func (s Scope) Empty() bool { return len(s.logins) == 0 }

// Logins returns the scope sorted.
func (s Scope) Logins() []ledger.ActorID {
	out := make([]ledger.ActorID, 0, len(s.logins))
	for l := range s.logins {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Narrow returns the scope restricted to login, or an empty scope when login
// is not visible.
func (s Scope) Narrow(login ledger.ActorID) Scope {
	if !s.Contains(login) {
		return NewScope(s.Viewer)
	}
	return NewScope(s.Viewer, login)
}

// =============================================================================
// RESOLVE
// =============================================================================

// Resolve computes the viewer's scope from a snapshot of all actors.
func Resolve(viewer ledger.Actor, actors []ledger.Actor) Scope {
	role := viewer.Role
	switch {
	case role.CanViewAll():
		var logins []ledger.ActorID
		for _, a := range actors {
			if a.Active {
				logins = append(logins, a.Login)
			}
		}
		return NewScope(viewer.Login, logins...)

	case role.CanViewSubordinates():
		logins := []ledger.ActorID{viewer.Login}
		for _, a := range actors {
			if a.Active && a.ReportsTo(viewer.Login) {
				logins = append(logins, a.Login)
			}
		}
		return NewScope(viewer.Login, logins...)
	}
	return NewScope(viewer.Login, viewer.Login)
}

// =============================================================================
// RESOLVER
// =============================================================================

type Resolver struct {
	directory ledger.Directory
}

func NewResolver(directory ledger.Directory) *Resolver {
	return &Resolver{directory: directory}
}

// ScopeFor resolves the scope of a stored actor. An inactive viewer gets an
// empty scope.
func (r *Resolver) ScopeFor(ctx context.Context, login ledger.ActorID) (Scope, error) {
	viewer, err := r.directory.GetActor(ctx, login)
	if err != nil {
		return Scope{}, ledger.Transient("resolve scope", err)
	}
	if !viewer.Active {
		return NewScope(login), nil
	}

	var actors []ledger.Actor
	if viewer.Role.CanViewAll() || viewer.Role.CanViewSubordinates() {
		actors, err = r.directory.ListActors(ctx)
		if err != nil {
			return Scope{}, ledger.Transient("resolve scope", err)
		}
	}
	return Resolve(viewer, actors), nil
}
