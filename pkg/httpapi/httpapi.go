// Package httpapi is the thin HTTP surface consumed by the UI layer:
// GET/POST /api/config and the GET /api/events SSE stream.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/netwatch/netwatch/pkg/model"
	"github.com/netwatch/netwatch/pkg/snapshotbus"
	"github.com/netwatch/netwatch/pkg/store"
	"github.com/netwatch/netwatch/pkg/targetstate"
)

// Server wires the config/status surface to the shared Snapshot Bus
// and TargetState map.
type Server struct {
	configPath string
	bus        *snapshotbus.Bus
	states     *targetstate.Map
	log        *zap.SugaredLogger
}

// New creates a Server.
func New(configPath string, bus *snapshotbus.Bus, states *targetstate.Map, log *zap.SugaredLogger) *Server {
	return &Server{configPath: configPath, bus: bus, states: states, log: log}
}

// Router builds the gin engine with the three API routes mounted
// under /api.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/config", s.getConfig)
	api.POST("/config", s.postConfig)
	api.GET("/events", s.streamEvents)

	return r
}

func (s *Server) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, s.bus.Config())
}

// postConfig merges an incoming config replacement with live state:
// current in-memory current_state always wins over whatever the
// client sent, and for
// targets the client doesn't know about (shouldn't happen under normal
// UI use, but the API must be defensive), the prior last_known_state
// is preserved.
func (s *Server) postConfig(c *gin.Context) {
	var replacement model.AppConfig
	if err := c.ShouldBindJSON(&replacement); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	current := s.bus.Config()
	priorByID := make(map[string]*bool, len(current.Targets))
	for _, t := range current.Targets {
		priorByID[t.ID] = t.LastKnownState
	}

	for i := range replacement.Targets {
		t := &replacement.Targets[i]
		if t.ID == "" {
			// A newly added target from the UI arrives without an id.
			t.ID = uuid.New().String()
			continue
		}
		if st := s.states.Get(t.ID); st != nil {
			live := st.CurrentState()
			t.LastKnownState = &live
			continue
		}
		if prior, ok := priorByID[t.ID]; ok {
			t.LastKnownState = prior
		}
	}

	for i := range replacement.Alert.Webhooks {
		wh := &replacement.Alert.Webhooks[i]
		if wh.ID == "" {
			wh.ID = uuid.New().String()
		}
	}

	if err := store.SaveConfig(s.configPath, replacement); err != nil {
		s.log.Errorw("httpapi: failed to save config", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save config"})
		return
	}

	s.bus.Publish(replacement)
	c.JSON(http.StatusOK, replacement)
}

// MonitorStatus is one row of the SSE status payload.
type MonitorStatus struct {
	TargetID     string              `json:"target_id"`
	Name         string              `json:"name"`
	CurrentState bool                `json:"current_state"`
	Records      []model.ProbeRecord `json:"records"`
}

// streamEvents serves the SSE status stream: an init event carrying
// every target's status sorted by config order (unknown ids last),
// then update events as they're broadcast, interleaved with raw
// keep-alive comment lines, and an error event with "stream lagged"
// if the subscriber's buffer overflows.
func (s *Server) streamEvents(c *gin.Context) {
	sub, unsubscribe := s.bus.Subscribe(32)
	defer unsubscribe()

	init := s.buildInitSnapshot()
	c.SSEvent("init", init)
	c.Writer.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case payload, ok := <-sub:
			if !ok {
				c.SSEvent("error", "stream lagged")
				return false
			}
			var raw json.RawMessage = payload
			c.SSEvent("update", raw)
			return true
		case <-ticker.C:
			// A true SSE comment is a raw ":"-prefixed line, invisible
			// to every EventSource listener regardless of the event
			// name it's subscribed to. c.SSEvent always emits a named
			// event, so the keep-alive is written directly instead.
			if _, err := c.Writer.WriteString(": keep-alive\n\n"); err != nil {
				return false
			}
			c.Writer.Flush()
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (s *Server) buildInitSnapshot() []MonitorStatus {
	cfg := s.bus.Config()
	order := make(map[string]int, len(cfg.Targets))
	for i, t := range cfg.Targets {
		order[t.ID] = i
	}

	statuses := make([]MonitorStatus, 0, len(cfg.Targets))
	for _, st := range s.states.Snapshot() {
		snap := st.Snapshot()
		statuses = append(statuses, MonitorStatus{
			TargetID:     snap.Target.ID,
			Name:         snap.Target.Name,
			CurrentState: snap.CurrentState,
			Records:      snap.Records,
		})
	}

	sort.SliceStable(statuses, func(i, j int) bool {
		oi, iok := order[statuses[i].TargetID]
		oj, jok := order[statuses[j].TargetID]
		if !iok {
			oi = len(order)
		}
		if !jok {
			oj = len(order)
		}
		return oi < oj
	})

	return statuses
}
