// internal/handler/event_bus.go
package handler

import (
	"sync"

	"go.uber.org/zap"

	"tachymeter-service/internal/model"
)

// AllEvents subscribes to every event type
const AllEvents = "*"

// EventBus manages event distribution. It implements service.EventPublisher.
type EventBus struct {
	subscribers map[string][]chan *model.InstrumentEvent
	events      chan *model.InstrumentEvent
	closed      bool
	mutex       sync.RWMutex
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		subscribers: make(map[string][]chan *model.InstrumentEvent),
		events:      make(chan *model.InstrumentEvent, 1000),
		logger:      logger,
	}
}

// Start distributes events until Close is called
func (eb *EventBus) Start() {
	for event := range eb.events {
		eb.distributeEvent(event)
	}

	eb.mutex.Lock()
	for _, subscribers := range eb.subscribers {
		for _, subscriber := range subscribers {
			close(subscriber)
		}
	}
	eb.subscribers = make(map[string][]chan *model.InstrumentEvent)
	eb.mutex.Unlock()
}

// Close stops the bus; subscriber channels are closed once pending events are delivered
func (eb *EventBus) Close() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	if !eb.closed {
		eb.closed = true
		close(eb.events)
	}
}

// Publish publishes an event without blocking
func (eb *EventBus) Publish(event *model.InstrumentEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	if eb.closed {
		return
	}

	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.EventType)),
		)
	}
}

// Subscribe subscribes to events of a specific type, or AllEvents
func (eb *EventBus) Subscribe(eventType string) <-chan *model.InstrumentEvent {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan *model.InstrumentEvent, 100)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
	return subscriber
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event *model.InstrumentEvent) {
	eb.mutex.RLock()
	subscribers := append([]chan *model.InstrumentEvent(nil), eb.subscribers[string(event.EventType)]...)
	subscribers = append(subscribers, eb.subscribers[AllEvents]...)
	eb.mutex.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
