package snapshotbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netwatch/netwatch/pkg/model"
)

func TestConfig_ReturnsClone(t *testing.T) {
	b := New(model.AppConfig{DataRetentionDays: 3, Targets: []model.Target{{ID: "1"}}})
	cfg := b.Config()
	cfg.Targets[0].ID = "mutated"

	assert.Equal(t, "1", b.Config().Targets[0].ID, "mutating a returned snapshot must not affect the bus")
}

func TestPublish_ClosesWaitingChangedChannels(t *testing.T) {
	b := New(model.AppConfig{})
	ch := b.Changed()

	select {
	case <-ch:
		t.Fatal("Changed channel must not be closed before Publish")
	default:
	}

	b.Publish(model.AppConfig{DataRetentionDays: 7})

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("Changed channel should close immediately after Publish")
	}
	assert.Equal(t, uint(7), b.Config().DataRetentionDays)
}

func TestChanged_EachCallIsIndependent(t *testing.T) {
	b := New(model.AppConfig{})
	first := b.Changed()
	b.Publish(model.AppConfig{})
	<-first

	second := b.Changed()
	select {
	case <-second:
		t.Fatal("a fresh Changed() call must not see a prior Publish")
	default:
	}
}

func TestSubscribe_ReceivesBroadcastPayload(t *testing.T) {
	b := New(model.AppConfig{})
	ch, unsubscribe := b.Subscribe(1)
	defer unsubscribe()

	b.BroadcastEvent([]byte("hello"))

	select {
	case payload := <-ch:
		assert.Equal(t, "hello", string(payload))
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the broadcast payload")
	}
}

func TestBroadcastEvent_OverflowClosesLaggedSubscriber(t *testing.T) {
	b := New(model.AppConfig{})
	ch, _ := b.Subscribe(1)

	b.BroadcastEvent([]byte("one")) // fills the buffer of 1
	b.BroadcastEvent([]byte("two")) // subscriber is now lagged: dropped and closed

	// Drain the first payload, then expect the channel to be closed.
	<-ch
	_, ok := <-ch
	require.False(t, ok, "a lagged subscriber's channel must be closed, not silently starved")
}

func TestUnsubscribe_ClosesChannelAndStopsDelivery(t *testing.T) {
	b := New(model.AppConfig{})
	ch, unsubscribe := b.Subscribe(1)
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)

	// Broadcasting after unsubscribe must not panic on the removed entry.
	b.BroadcastEvent([]byte("ignored"))
}
