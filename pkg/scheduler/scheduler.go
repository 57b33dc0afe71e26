// Package scheduler implements the concurrent probe scheduler and its
// live-reconfiguration protocol: each tick it fans one probe per
// target out in parallel, awaits them all, runs the debounce decision
// for each completion, and emits StateChanged events to whichever
// collaborators are listening.
package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/netwatch/netwatch/pkg/debounce"
	"github.com/netwatch/netwatch/pkg/event"
	"github.com/netwatch/netwatch/pkg/model"
	"github.com/netwatch/netwatch/pkg/probe"
	"github.com/netwatch/netwatch/pkg/snapshotbus"
	"github.com/netwatch/netwatch/pkg/targetstate"
)

// Scheduler owns the tick loop and the TargetState map's membership.
type Scheduler struct {
	prober *probe.Prober
	states *targetstate.Map
	bus    *snapshotbus.Bus

	persistOut   chan<- event.StateChanged
	onTransition func(event.StateChanged)
	onResult     func(targetID string)

	log *zap.SugaredLogger

	lastHash string
}

// New builds a Scheduler. persistOut must never be closed while the
// scheduler is running; it is the persistence worker's inbox and a
// state change must never be silently dropped on that path.
// onTransition is called
// synchronously for every StateChanged (wired to the Alert
// Dispatcher); onResult is called after every probe completion,
// success or failure (wired to the Snapshot Bus's status broadcast).
func New(prober *probe.Prober, states *targetstate.Map, bus *snapshotbus.Bus, persistOut chan<- event.StateChanged, onTransition func(event.StateChanged), onResult func(targetID string), log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		prober:       prober,
		states:       states,
		bus:          bus,
		persistOut:   persistOut,
		onTransition: onTransition,
		onResult:     onResult,
		log:          log,
	}
}

// Run drives ticks until ctx is cancelled. It performs the initial
// reload synchronization before the first tick so that a freshly
// started process has TargetState entries before it probes anything.
func (s *Scheduler) Run(ctx context.Context) {
	s.Reload()

	for {
		s.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(model.Tick):
		case <-s.bus.Changed():
			s.Reload()
		}
	}
}

// tick fans one probe per tracked target out in parallel and awaits
// them all before returning.
func (s *Scheduler) tick(ctx context.Context) {
	states := s.states.Snapshot()
	if len(states) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, st := range states {
		st := st
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.log.Errorw("scheduler: probe task panicked", "err", r)
				}
			}()
			s.probeOne(gctx, st)
			return nil
		})
	}
	_ = g.Wait()
}

// probeOne runs one probe, then pushes the record and runs the debounce
// decision inside the per-target critical section, so that the record
// push and debounce decision for a given target are never interleaved
// with another push for the same target. The probe itself runs before
// that lock is taken.
func (s *Scheduler) probeOne(ctx context.Context, st *targetstate.State) {
	target := st.Target()
	result := s.prober.Probe(ctx, target)

	rec := model.ProbeRecord{
		Timestamp: time.Now(),
		LatencyMS: result.LatencyMS,
		Success:   result.Success,
		Message:   result.Message,
	}

	emit, newState := st.PushRecord(rec, debounce.Decide)

	if s.onResult != nil {
		s.onResult(target.ID)
	}

	if !emit {
		return
	}

	ev := event.StateChanged{
		Target:    st.Target(),
		NewState:  newState,
		Message:   result.Message,
		Timestamp: rec.Timestamp,
	}

	// Persistence must never drop this; it is delivered with
	// backpressure, not best-effort.
	s.persistOut <- ev

	if s.onTransition != nil {
		s.onTransition(ev)
	}
}

// Reload applies a config change to TargetState membership: compute
// the probe-affecting structural hash of the current targets list; if it
// changed, synchronize TargetState membership, giving a fresh, empty
// State to any target whose probe-affecting Key changed; regardless,
// refresh each remaining entry's Target descriptor and retention cap so
// renames and retention/alert edits take effect without resetting
// history. Exported so callers can bootstrap TargetState membership
// (e.g. before loading cache.json) before the tick loop starts.
func (s *Scheduler) Reload() {
	cfg := s.bus.Config()
	hash := structuralHash(cfg.Targets)
	retentionCap := model.RetentionLimit(cfg.DataRetentionDays)

	if hash != s.lastHash {
		s.syncMembership(cfg.Targets, retentionCap)
		s.lastHash = hash
		return
	}

	for _, t := range cfg.Targets {
		if st := s.states.Get(t.ID); st != nil {
			st.SetTarget(t)
			st.SetRetentionCap(retentionCap)
		}
	}
}

func (s *Scheduler) syncMembership(targets []model.Target, retentionCap int) {
	wanted := make(map[string]model.Target, len(targets))
	for _, t := range targets {
		wanted[t.ID] = t
	}

	for _, id := range s.states.Ids() {
		if _, ok := wanted[id]; !ok {
			s.states.Delete(id)
		}
	}

	for _, t := range targets {
		if st := s.states.Get(t.ID); st != nil && st.Target().Key() == t.Key() {
			st.SetTarget(t)
			st.SetRetentionCap(retentionCap)
			continue
		}
		s.states.Set(t.ID, targetstate.New(t, retentionCap))
	}
}

// structuralHash hashes only the probe-affecting fields (id, host,
// port, protocol) of targets so that a pure last_known_state rewrite
// — which does not touch these fields — leaves the hash unchanged.
// The keys are sorted before hashing, so reordering targets in the
// config file alone is not a structural change either; see DESIGN.md
// for why this diverges from a literal port of the original.
func structuralHash(targets []model.Target) string {
	keys := make([]string, len(targets))
	for i, t := range targets {
		keys[i] = t.Key()
	}
	sort.Strings(keys) // order-independent: renumbering targets in the UI must not look structural
	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
