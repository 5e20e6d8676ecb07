// Package store provides in-memory ledger Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/hours-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps sessions, pauses, actors and tasks in maps. It enforces the
// same uniqueness rules as the durable store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[ledger.SessionID]ledger.WorkSession
	pauses   map[ledger.SessionID][]ledger.PauseInterval
	actors   map[ledger.ActorID]ledger.Actor
	tasks    map[ledger.TaskID]ledger.Task
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[ledger.SessionID]ledger.WorkSession),
		pauses:   make(map[ledger.SessionID][]ledger.PauseInterval),
		actors:   make(map[ledger.ActorID]ledger.Actor),
		tasks:    make(map[ledger.TaskID]ledger.Task),
	}
}

func (m *Memory) CreateSession(_ context.Context, s ledger.WorkSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(s)
}

func (m *Memory) createLocked(s ledger.WorkSession) error {
	if _, ok := m.sessions[s.ID]; ok {
		return &ledger.ConflictError{Constraint: ledger.ConstraintUnique, Detail: "session id " + string(s.ID)}
	}
	if s.Status.Active() {
		if active := m.activeLocked(s.ActorID); active != nil {
			return &ledger.ConflictError{Constraint: ledger.ConstraintActiveSession, ActorID: s.ActorID, SessionID: active.ID}
		}
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *Memory) GetSession(_ context.Context, id ledger.SessionID) (ledger.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id)
}

func (m *Memory) getLocked(id ledger.SessionID) (ledger.WorkSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return ledger.WorkSession{}, &ledger.NotFoundError{Kind: "session", ID: string(id)}
	}
	return s, nil
}

func (m *Memory) ActiveSession(_ context.Context, actor ledger.ActorID) (*ledger.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeLocked(actor), nil
}

func (m *Memory) activeLocked(actor ledger.ActorID) *ledger.WorkSession {
	for _, s := range m.sessions {
		if s.ActorID == actor && s.Status.Active() {
			found := s
			return &found
		}
	}
	return nil
}

func (m *Memory) UpdateSession(_ context.Context, s ledger.WorkSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(s)
}

func (m *Memory) updateLocked(s ledger.WorkSession) error {
	cur, err := m.getLocked(s.ID)
	if err != nil {
		return err
	}
	cur.Status = s.Status
	cur.FinishedAt = s.FinishedAt
	cur.Total, cur.Paused, cur.Worked = s.Total, s.Paused, s.Worked
	m.sessions[s.ID] = cur
	return nil
}

func (m *Memory) AddPause(_ context.Context, p ledger.PauseInterval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addPauseLocked(p)
}

func (m *Memory) addPauseLocked(p ledger.PauseInterval) error {
	if _, ok := m.sessions[p.SessionID]; !ok {
		return &ledger.NotFoundError{Kind: "session", ID: string(p.SessionID)}
	}
	if p.Open() && m.openPauseLocked(p.SessionID) != nil {
		return &ledger.ConflictError{Constraint: ledger.ConstraintOpenPause, SessionID: p.SessionID}
	}
	ps := m.pauses[p.SessionID]
	i := sort.Search(len(ps), func(i int) bool { return ps[i].PausedAt.After(p.PausedAt) })
	ps = append(ps, ledger.PauseInterval{})
	copy(ps[i+1:], ps[i:])
	ps[i] = p
	m.pauses[p.SessionID] = ps
	return nil
}

func (m *Memory) OpenPause(_ context.Context, session ledger.SessionID) (*ledger.PauseInterval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.openPauseLocked(session), nil
}

func (m *Memory) openPauseLocked(session ledger.SessionID) *ledger.PauseInterval {
	for _, p := range m.pauses[session] {
		if p.Open() {
			found := p
			return &found
		}
	}
	return nil
}

func (m *Memory) ClosePause(_ context.Context, id ledger.PauseID, resumedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closePauseLocked(id, resumedAt)
}

func (m *Memory) closePauseLocked(id ledger.PauseID, resumedAt time.Time) error {
	for sid, ps := range m.pauses {
		for i := range ps {
			if ps[i].ID == id {
				at := resumedAt
				ps[i].ResumedAt = &at
				m.pauses[sid] = ps
				return nil
			}
		}
	}
	return &ledger.NotFoundError{Kind: "pause", ID: string(id)}
}

func (m *Memory) Pauses(_ context.Context, session ledger.SessionID) ([]ledger.PauseInterval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ledger.PauseInterval(nil), m.pauses[session]...), nil
}

// Sessions returns every session ordered by start time.
func (m *Memory) Sessions(_ context.Context) []ledger.WorkSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.WorkSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// =============================================================================
// DIRECTORY AND TASKS
// =============================================================================

func (m *Memory) SaveActor(_ context.Context, a ledger.Actor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actors[a.Login] = a
	return nil
}

func (m *Memory) GetActor(_ context.Context, login ledger.ActorID) (ledger.Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actors[login]
	if !ok {
		return ledger.Actor{}, &ledger.NotFoundError{Kind: "actor", ID: string(login)}
	}
	return a, nil
}

func (m *Memory) ListActors(_ context.Context) ([]ledger.Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Actor, 0, len(m.actors))
	for _, a := range m.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	return out, nil
}

func (m *Memory) SaveTask(_ context.Context, t ledger.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
	return nil
}

func (m *Memory) GetTask(_ context.Context, id ledger.TaskID) (ledger.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return ledger.Task{}, &ledger.NotFoundError{Kind: "task", ID: string(id)}
	}
	return t, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// Transactions are fully serialized.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	sessions map[ledger.SessionID]ledger.WorkSession
	pauses   map[ledger.SessionID][]ledger.PauseInterval
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		sessions: make(map[ledger.SessionID]ledger.WorkSession, len(tm.sessions)),
		pauses:   make(map[ledger.SessionID][]ledger.PauseInterval, len(tm.pauses)),
	}
	for k, v := range tm.sessions {
		s.sessions[k] = v
	}
	for k, v := range tm.pauses {
		s.pauses[k] = append([]ledger.PauseInterval(nil), v...)
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.sessions = s.sessions
	tm.pauses = s.pauses
}

// txMemoryView runs against the parent while its lock is held.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) CreateSession(_ context.Context, s ledger.WorkSession) error {
	return tv.parent.createLocked(s)
}

func (tv *txMemoryView) GetSession(_ context.Context, id ledger.SessionID) (ledger.WorkSession, error) {
	return tv.parent.getLocked(id)
}

func (tv *txMemoryView) ActiveSession(_ context.Context, actor ledger.ActorID) (*ledger.WorkSession, error) {
	return tv.parent.activeLocked(actor), nil
}

func (tv *txMemoryView) UpdateSession(_ context.Context, s ledger.WorkSession) error {
	return tv.parent.updateLocked(s)
}

func (tv *txMemoryView) AddPause(_ context.Context, p ledger.PauseInterval) error {
	return tv.parent.addPauseLocked(p)
}

func (tv *txMemoryView) OpenPause(_ context.Context, session ledger.SessionID) (*ledger.PauseInterval, error) {
	return tv.parent.openPauseLocked(session), nil
}

func (tv *txMemoryView) ClosePause(_ context.Context, id ledger.PauseID, resumedAt time.Time) error {
	return tv.parent.closePauseLocked(id, resumedAt)
}

func (tv *txMemoryView) Pauses(_ context.Context, session ledger.SessionID) ([]ledger.PauseInterval, error) {
	return append([]ledger.PauseInterval(nil), tv.parent.pauses[session]...), nil
}
