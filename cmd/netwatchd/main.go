// Command netwatchd runs the NetWatch monitoring engine: the
// concurrent probe scheduler, the debounced liveness state machine,
// the persistence worker, the alert dispatcher, and a thin HTTP
// surface for the UI layer.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"

	"github.com/netwatch/netwatch/internal/logging"
	"github.com/netwatch/netwatch/pkg/alert"
	"github.com/netwatch/netwatch/pkg/event"
	"github.com/netwatch/netwatch/pkg/httpapi"
	"github.com/netwatch/netwatch/pkg/persistence"
	"github.com/netwatch/netwatch/pkg/probe"
	"github.com/netwatch/netwatch/pkg/scheduler"
	"github.com/netwatch/netwatch/pkg/snapshotbus"
	"github.com/netwatch/netwatch/pkg/store"
	"github.com/netwatch/netwatch/pkg/targetstate"
)

func main() {
	dir := flag.String("d", "", "change to this directory before any file I/O")
	configPath := flag.String("c", "config.json", "path to the config file")
	listenAddr := flag.String("listen-address", ":8085", "address for the HTTP API to listen on")
	flag.Parse()

	logger := logging.New()
	defer logger.Sync()
	log := logger.Sugar()

	if *dir != "" {
		if err := os.Chdir(*dir); err != nil {
			log.Errorw("failed to change working directory", "dir", *dir, "err", err)
			os.Exit(1)
		}
	}

	cfg, err := store.LoadConfig(*configPath)
	if err != nil {
		log.Errorw("failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}

	bus := snapshotbus.New(cfg)
	states := targetstate.NewMap()
	prober := probe.New()

	// persistOut is bounded-with-backpressure: a generously buffered
	// channel that blocks on send rather than drop a state change.
	persistOut := make(chan event.StateChanged, 4096)
	persistWorker := persistence.New(*configPath, bus, states, persistOut, log)

	alertDispatcher := alert.New(bus, log)

	onTransition := func(ev event.StateChanged) {
		alertDispatcher.Dispatch(ev)
		broadcastStatus(bus, ev.Target.ID, states, log)
	}
	onResult := func(targetID string) {
		broadcastStatus(bus, targetID, states, log)
	}

	sched := scheduler.New(prober, states, bus, persistOut, onTransition, onResult, log)

	// Bootstrap TargetState membership before restoring cache.json so
	// restore has somewhere to write into, and before the tick loop
	// starts so the first tick already has targets to probe.
	sched.Reload()
	persistence.LoadCacheIntoStates("cache.json", cfg, states, log)

	api := httpapi.New(*configPath, bus, states, log)
	httpServer := &http.Server{
		Addr:         *listenAddr,
		Handler:      api.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams are long-lived
	}

	var g run.Group

	schedCtx, schedCancel := context.WithCancel(context.Background())
	g.Add(func() error {
		sched.Run(schedCtx)
		return nil
	}, func(error) {
		schedCancel()
	})

	persistCtx, persistCancel := context.WithCancel(context.Background())
	g.Add(func() error {
		persistWorker.Run(persistCtx)
		return nil
	}, func(error) {
		persistCancel()
	})

	g.Add(func() error {
		log.Infow("starting HTTP API server", "addr", *listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctx)
	})

	g.Add(run.SignalHandler(context.Background(), syscall.SIGINT, syscall.SIGTERM))

	if err := g.Run(); err != nil {
		if _, ok := err.(run.SignalError); !ok {
			log.Errorw("run group exited with error", "err", err)
		}
	}

	log.Infow("shutting down, flushing cache")
	persistence.SaveCacheOnShutdown("cache.json", states, log)
	log.Infow("shutdown complete")
}

// broadcastStatus publishes a single target's current status to the
// Snapshot Bus's SSE fan-out.
func broadcastStatus(bus *snapshotbus.Bus, targetID string, states *targetstate.Map, log interface{ Errorw(string, ...interface{}) }) {
	st := states.Get(targetID)
	if st == nil {
		return
	}
	snap := st.Snapshot()
	payload := httpapi.MonitorStatus{
		TargetID:     snap.Target.ID,
		Name:         snap.Target.Name,
		CurrentState: snap.CurrentState,
		Records:      snap.Records,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Errorw("failed to marshal status broadcast", "err", err)
		return
	}
	bus.BroadcastEvent(data)
}
