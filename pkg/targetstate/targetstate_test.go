package targetstate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/netwatch/netwatch/pkg/model"
)

func noopDebounce(records []model.ProbeRecord, wasFirst bool, previousState bool, hadLastKnown bool) (bool, bool) {
	return false, previousState
}

func TestNew_SeedsFromLastKnownState(t *testing.T) {
	up := true
	s := New(model.Target{ID: "1", LastKnownState: &up}, 60)
	assert.True(t, s.CurrentState())
}

func TestNew_NoLastKnownState_DefaultsFalse(t *testing.T) {
	s := New(model.Target{ID: "1"}, 60)
	assert.False(t, s.CurrentState())
}

func TestPushRecord_InsertsNewestFirst(t *testing.T) {
	s := New(model.Target{ID: "1"}, 60)
	s.PushRecord(model.ProbeRecord{Message: "first"}, noopDebounce)
	s.PushRecord(model.ProbeRecord{Message: "second"}, noopDebounce)

	records := s.Records()
	assert.Len(t, records, 2)
	assert.Equal(t, "second", records[0].Message)
	assert.Equal(t, "first", records[1].Message)
}

func TestPushRecord_TrimsToRetentionCap(t *testing.T) {
	s := New(model.Target{ID: "1"}, 2)
	s.PushRecord(model.ProbeRecord{Message: "a"}, noopDebounce)
	s.PushRecord(model.ProbeRecord{Message: "b"}, noopDebounce)
	s.PushRecord(model.ProbeRecord{Message: "c"}, noopDebounce)

	records := s.Records()
	assert.Len(t, records, 2)
	assert.Equal(t, "c", records[0].Message)
	assert.Equal(t, "b", records[1].Message)
}

func TestPushRecord_PassesCorrectArgumentsToDebouncer(t *testing.T) {
	var gotWasFirst, gotHadLastKnown bool
	var gotPrevious bool
	known := true
	s := New(model.Target{ID: "1", LastKnownState: &known}, 60)

	s.PushRecord(model.ProbeRecord{Success: false}, func(records []model.ProbeRecord, wasFirst bool, previousState bool, hadLastKnown bool) (bool, bool) {
		gotWasFirst = wasFirst
		gotHadLastKnown = hadLastKnown
		gotPrevious = previousState
		return true, false
	})

	assert.True(t, gotWasFirst)
	assert.True(t, gotHadLastKnown)
	assert.True(t, gotPrevious)
	assert.False(t, s.CurrentState())
}

func TestSetTarget_PreservesRecordsAndState(t *testing.T) {
	s := New(model.Target{ID: "1", Name: "old"}, 60)
	s.PushRecord(model.ProbeRecord{Success: true}, noopDebounce)

	s.SetTarget(model.Target{ID: "1", Name: "new"})

	assert.Equal(t, "new", s.Target().Name)
	assert.Len(t, s.Records(), 1)
}

func TestSnapshotRestore_RoundTrips(t *testing.T) {
	s := New(model.Target{ID: "1"}, 60)
	s.PushRecord(model.ProbeRecord{Success: true, Message: "ok"}, func(records []model.ProbeRecord, wasFirst bool, previousState bool, hadLastKnown bool) (bool, bool) {
		return true, true
	})

	snap := s.Snapshot()
	assert.True(t, snap.CurrentState)
	assert.Len(t, snap.Records, 1)

	restored := New(model.Target{ID: "2"}, 60)
	restored.Restore(snap.Records, snap.CurrentState)
	assert.Equal(t, snap.Records, restored.Records())
	assert.True(t, restored.CurrentState())
}

func TestMap_SetGetDeleteIds(t *testing.T) {
	m := NewMap()
	s1 := New(model.Target{ID: "1"}, 60)
	s2 := New(model.Target{ID: "2"}, 60)
	m.Set("1", s1)
	m.Set("2", s2)

	assert.Equal(t, 2, m.Len())
	assert.Same(t, s1, m.Get("1"))
	assert.ElementsMatch(t, []string{"1", "2"}, m.Ids())

	m.Delete("1")
	assert.Equal(t, 1, m.Len())
	assert.Nil(t, m.Get("1"))
}

func TestMap_Snapshot_ReturnsAllStates(t *testing.T) {
	m := NewMap()
	m.Set("1", New(model.Target{ID: "1"}, 60))
	m.Set("2", New(model.Target{ID: "2"}, 60))

	snap := m.Snapshot()
	assert.Len(t, snap, 2)
}
