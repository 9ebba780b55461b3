package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tachymeter-service/internal/model"
)

func receive(t *testing.T, ch <-chan *model.InstrumentEvent) *model.InstrumentEvent {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestEventBus_Distribution(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	go bus.Start()
	defer bus.Close()

	runEvents := bus.Subscribe(string(model.EventRunCompleted))
	all := bus.Subscribe(AllEvents)

	bus.Publish(model.NewInstrumentEvent(model.EventPointed, "test", nil))
	bus.Publish(model.NewInstrumentEvent(model.EventRunCompleted, "test", model.JSONObject{"status": "SUCCESS"}))

	assert.Equal(t, model.EventPointed, receive(t, all).EventType)
	assert.Equal(t, model.EventRunCompleted, receive(t, all).EventType)

	event := receive(t, runEvents)
	assert.Equal(t, model.EventRunCompleted, event.EventType)
	assert.Equal(t, "SUCCESS", event.Data["status"])

	select {
	case extra := <-runEvents:
		t.Fatalf("unexpected event %s", extra.EventType)
	default:
	}
}

func TestEventBus_CloseEndsSubscriptions(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	done := make(chan struct{})
	go func() {
		bus.Start()
		close(done)
	}()

	sub := bus.Subscribe(AllEvents)
	bus.Publish(model.NewInstrumentEvent(model.EventHealthUpdate, "test", nil))
	bus.Close()
	bus.Close()

	// Pending events are still delivered before the channel closes
	assert.Equal(t, model.EventHealthUpdate, receive(t, sub).EventType)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bus did not stop")
	}

	_, ok := <-sub
	assert.False(t, ok)

	assert.NotPanics(t, func() {
		bus.Publish(model.NewInstrumentEvent(model.EventHealthUpdate, "test", nil))
	})
}

func TestNewInstrumentEventSeverity(t *testing.T) {
	assert.Equal(t, "ERROR", model.NewInstrumentEvent(model.EventInstrumentError, "x", nil).Severity)
	assert.Equal(t, "INFO", model.NewInstrumentEvent(model.EventRunStarted, "x", nil).Severity)
}
