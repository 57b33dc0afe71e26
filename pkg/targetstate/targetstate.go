// Package targetstate holds the per-target rolling probe history and
// debounced liveness state the Scheduler and Persistence Worker share.
package targetstate

import (
	"sync"

	"github.com/netwatch/netwatch/pkg/model"
)

// State is the in-memory record for one target: its rolling history
// (newest-first, bounded) and current debounced state. All mutation
// goes through the exported methods, which serialize access with a
// per-entry mutex so a probe result, its debounce decision, and any
// resulting event stay consistent with each other.
type State struct {
	mu           sync.Mutex
	target       model.Target
	records      []model.ProbeRecord
	currentState bool
	retentionCap int
}

// New creates a State for target, seeded from LastKnownState if
// present: with no records yet, current_state mirrors the last
// persisted liveness, or defaults to false when there is none.
func New(target model.Target, retentionCap int) *State {
	s := &State{
		target:       target,
		retentionCap: retentionCap,
	}
	if target.LastKnownState != nil {
		s.currentState = *target.LastKnownState
	}
	return s
}

// Target returns a copy of the target this state tracks.
func (s *State) Target() model.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// SetTarget updates the tracked target descriptor (e.g. a rename) in
// place, preserving records and current_state: an edit that doesn't
// change how the target is probed shouldn't reset its history.
func (s *State) SetTarget(target model.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = target
}

// SetRetentionCap updates the retention limit applied on the next
// push; it does not retroactively trim existing records beyond what a
// push would already trim.
func (s *State) SetRetentionCap(cap int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retentionCap = cap
}

// Records returns a copy of the current newest-first record slice.
func (s *State) Records() []model.ProbeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ProbeRecord, len(s.records))
	copy(out, s.records)
	return out
}

// CurrentState returns the current debounced liveness state.
func (s *State) CurrentState() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentState
}

// PushRecord inserts rec at the front of the history, trimming the
// back if the retention cap is exceeded, then runs fn (typically the
// debouncer) while still holding the per-target lock so that the
// record push and the resulting debounce decision happen as one
// atomic step, with no other probe result able to interleave. fn
// receives the records after the push (newest-first), whether this was
// the first record, the state before this push, and whether the target
// has a last_known_state; fn returns whether a transition should be
// emitted and the new state, which PushRecord stores.
func (s *State) PushRecord(rec model.ProbeRecord, fn func(records []model.ProbeRecord, wasFirst bool, previousState bool, hadLastKnown bool) (emit bool, newState bool)) (emit bool, newState bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasFirst := len(s.records) == 0
	hadLastKnown := s.target.LastKnownState != nil
	previousState := s.currentState

	s.records = append([]model.ProbeRecord{rec}, s.records...)
	if s.retentionCap > 0 && len(s.records) > s.retentionCap {
		s.records = s.records[:s.retentionCap]
	}

	emit, newState = fn(s.records, wasFirst, previousState, hadLastKnown)
	s.currentState = newState
	return emit, newState
}

// SetLastKnownState records the persisted liveness state on the
// tracked target, called by the persistence worker just before it
// writes the state to config.json.
func (s *State) SetLastKnownState(state bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target.LastKnownState = &state
}

// Snapshot captures records and current_state together, atomically
// with respect to concurrent pushes, for cache serialization.
type Snapshot struct {
	Target       model.Target
	Records      []model.ProbeRecord
	CurrentState bool
}

// Snapshot returns a consistent point-in-time view of the state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]model.ProbeRecord, len(s.records))
	copy(records, s.records)
	return Snapshot{
		Target:       s.target,
		Records:      records,
		CurrentState: s.currentState,
	}
}

// Restore replaces records and current_state wholesale, used when
// loading cache.json at startup.
func (s *State) Restore(records []model.ProbeRecord, currentState bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.currentState = currentState
}

// Map is the concurrent-safe map of target id to *State shared by the
// scheduler, the persistence worker, and the snapshot bus's readers.
type Map struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{states: make(map[string]*State)}
}

// Get returns the State for id, or nil if absent.
func (m *Map) Get(id string) *State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.states[id]
}

// Set installs or replaces the State for id.
func (m *Map) Set(id string, state *State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[id] = state
}

// Delete removes the State for id.
func (m *Map) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
}

// Ids returns all currently tracked target ids, order unspecified.
func (m *Map) Ids() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.states))
	for id := range m.states {
		out = append(out, id)
	}
	return out
}

// Len returns the number of tracked targets.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// Snapshot returns a shallow slice of every *State currently tracked,
// keyed implicitly by their own Target().ID.
func (m *Map) Snapshot() []*State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*State, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, s)
	}
	return out
}
