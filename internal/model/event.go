// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventInstrumentConnected    EventType = "INSTRUMENT_CONNECTED"
	EventInstrumentDisconnected EventType = "INSTRUMENT_DISCONNECTED"
	EventInstrumentError        EventType = "INSTRUMENT_ERROR"
	EventStatusChanged          EventType = "STATUS_CHANGED"
	EventModeEnsured            EventType = "MODE_ENSURED"
	EventRunStarted             EventType = "RUN_STARTED"
	EventMeasurementAcquired    EventType = "MEASUREMENT_ACQUIRED"
	EventRunCompleted           EventType = "RUN_COMPLETED"
	EventPointed                EventType = "POINTED"
	EventFaceToggled            EventType = "FACE_TOGGLED"
	EventHealthUpdate           EventType = "HEALTH_UPDATE"
)

// InstrumentEvent represents an event in the system
type InstrumentEvent struct {
	ID        uuid.UUID  `json:"id"`
	EventType EventType  `json:"event_type"`
	RunID     *uuid.UUID `json:"run_id,omitempty"`
	Data      JSONObject `json:"data"`
	Timestamp time.Time  `json:"timestamp"`
	Source    string     `json:"source"`
	Severity  string     `json:"severity"` // INFO, WARNING, ERROR
}

// NewInstrumentEvent creates an event stamped with a fresh ID and the current time
func NewInstrumentEvent(eventType EventType, source string, data JSONObject) *InstrumentEvent {
	severity := "INFO"
	if eventType == EventInstrumentError {
		severity = "ERROR"
	}
	return &InstrumentEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Data:      data,
		Timestamp: time.Now(),
		Source:    source,
		Severity:  severity,
	}
}
