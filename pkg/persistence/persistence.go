// Package persistence implements the worker that consumes StateChanged
// events sequentially, writes the updated last_known_state into the
// authoritative config file, and republishes the mutated AppConfig so
// later reads see it rather than a stale startup snapshot.
package persistence

import (
	"context"

	"go.uber.org/zap"

	"github.com/netwatch/netwatch/pkg/event"
	"github.com/netwatch/netwatch/pkg/model"
	"github.com/netwatch/netwatch/pkg/snapshotbus"
	"github.com/netwatch/netwatch/pkg/store"
	"github.com/netwatch/netwatch/pkg/targetstate"
)

// Worker serially drains a StateChanged channel. It is the single
// writer of TargetState.last_known_state; config.json is written both
// by this worker and by the HTTP API's POST /api/config handler.
type Worker struct {
	configPath string
	bus        *snapshotbus.Bus
	states     *targetstate.Map
	events     chan event.StateChanged
	log        *zap.SugaredLogger
}

// New creates a Worker. events must be unbounded or generously
// buffered: unlike the broadcast/SSE path, this path must never drop a
// StateChanged event — a dropped one means a target's persisted
// liveness silently falls out of sync with its real state.
func New(configPath string, bus *snapshotbus.Bus, states *targetstate.Map, events chan event.StateChanged, log *zap.SugaredLogger) *Worker {
	return &Worker{
		configPath: configPath,
		bus:        bus,
		states:     states,
		events:     events,
		log:        log,
	}
}

// Run drains events until ctx is cancelled or the channel is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.events:
			if !ok {
				return
			}
			w.handle(ev)
		}
	}
}

func (w *Worker) handle(ev event.StateChanged) {
	state := w.states.Get(ev.Target.ID)
	if state != nil {
		state.SetLastKnownState(ev.NewState)
	}

	cfg := w.bus.Config()
	newState := ev.NewState
	found := false
	for i := range cfg.Targets {
		if cfg.Targets[i].ID == ev.Target.ID {
			cfg.Targets[i].LastKnownState = &newState
			found = true
			break
		}
	}
	if !found {
		w.log.Warnw("persistence: state change for unknown target", "target_id", ev.Target.ID)
		return
	}

	if err := store.SaveConfig(w.configPath, cfg); err != nil {
		// Logged, not fatal: the mutated config is still published
		// below, so the next StateChanged event's write carries this
		// change too.
		w.log.Errorw("persistence: failed to write config", "err", err)
	}

	w.bus.Publish(cfg)
}

// SaveCacheOnShutdown flushes every tracked target's rolling history
// to the cache file in one synchronous write.
func SaveCacheOnShutdown(cachePath string, states *targetstate.Map, log *zap.SugaredLogger) {
	entries := make([]store.CacheEntry, 0, states.Len())
	for _, s := range states.Snapshot() {
		snap := s.Snapshot()
		entries = append(entries, store.CacheEntry{
			ID:           snap.Target.ID,
			Records:      snap.Records,
			CurrentState: snap.CurrentState,
		})
	}
	if err := store.SaveCache(cachePath, entries); err != nil {
		log.Errorw("persistence: cache save failed", "err", err)
	}
}

// LoadCacheIntoStates restores rolling history for every target in cfg
// whose id appears in the cache file at path. Entries for ids that no
// longer appear in cfg are ignored.
func LoadCacheIntoStates(cachePath string, cfg model.AppConfig, states *targetstate.Map, log *zap.SugaredLogger) {
	entries, err := store.LoadCache(cachePath)
	if err != nil {
		log.Infow("persistence: no usable cache, starting cold", "err", err)
		return
	}

	byID := make(map[string]store.CacheEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	for _, t := range cfg.Targets {
		entry, ok := byID[t.ID]
		if !ok {
			continue
		}
		if s := states.Get(t.ID); s != nil {
			s.Restore(entry.Records, entry.CurrentState)
		}
	}
}
