package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netwatch/netwatch/pkg/model"
	"github.com/netwatch/netwatch/pkg/probe"
	"github.com/netwatch/netwatch/pkg/snapshotbus"
	"github.com/netwatch/netwatch/pkg/targetstate"
)

func TestReload_CreatesStateForNewTarget(t *testing.T) {
	cfg := model.AppConfig{Targets: []model.Target{{ID: "1", Host: "a.example.com", Protocol: model.ProtocolTCP}}}
	bus := snapshotbus.New(cfg)
	states := targetstate.NewMap()
	s := New(probe.New(), states, bus, nil, nil, nil, nil)

	s.Reload()

	require.NotNil(t, states.Get("1"))
	assert.Equal(t, 1, states.Len())
}

func TestReload_RemovesDeletedTarget(t *testing.T) {
	cfg := model.AppConfig{Targets: []model.Target{{ID: "1", Host: "a.example.com", Protocol: model.ProtocolTCP}}}
	bus := snapshotbus.New(cfg)
	states := targetstate.NewMap()
	s := New(probe.New(), states, bus, nil, nil, nil, nil)
	s.Reload()
	require.Equal(t, 1, states.Len())

	bus.Publish(model.AppConfig{Targets: []model.Target{}})
	s.Reload()

	assert.Equal(t, 0, states.Len())
}

func TestReload_NonStructuralEdit_PreservesHistory(t *testing.T) {
	cfg := model.AppConfig{Targets: []model.Target{{ID: "1", Name: "old", Host: "a.example.com", Protocol: model.ProtocolTCP}}}
	bus := snapshotbus.New(cfg)
	states := targetstate.NewMap()
	s := New(probe.New(), states, bus, nil, nil, nil, nil)
	s.Reload()

	st := states.Get("1")
	require.NotNil(t, st)
	st.PushRecord(model.ProbeRecord{Success: true}, func(records []model.ProbeRecord, wasFirst, previousState, hadLastKnown bool) (bool, bool) {
		return false, previousState
	})

	renamed := model.AppConfig{Targets: []model.Target{{ID: "1", Name: "new name", Host: "a.example.com", Protocol: model.ProtocolTCP}}}
	bus.Publish(renamed)
	s.Reload()

	assert.Equal(t, 1, states.Len())
	st = states.Get("1")
	require.NotNil(t, st)
	assert.Len(t, st.Records(), 1, "renaming a target must not reset its rolling history")
	assert.Equal(t, "new name", st.Target().Name)
}

func TestReload_StructuralEdit_ResetsHistory(t *testing.T) {
	cfg := model.AppConfig{Targets: []model.Target{{ID: "1", Host: "a.example.com", Protocol: model.ProtocolTCP}}}
	bus := snapshotbus.New(cfg)
	states := targetstate.NewMap()
	s := New(probe.New(), states, bus, nil, nil, nil, nil)
	s.Reload()

	st := states.Get("1")
	require.NotNil(t, st)
	st.PushRecord(model.ProbeRecord{Success: true}, func(records []model.ProbeRecord, wasFirst, previousState, hadLastKnown bool) (bool, bool) {
		return false, previousState
	})

	changed := model.AppConfig{Targets: []model.Target{{ID: "1", Host: "b.example.com", Protocol: model.ProtocolTCP}}}
	bus.Publish(changed)
	s.Reload()

	st = states.Get("1")
	require.NotNil(t, st)
	assert.Empty(t, st.Records(), "a host change is a structural edit and must discard rolling history")
}
