// internal/service/events.go
package service

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tachymeter-service/internal/model"
)

// EventPublisher receives instrument and measurement events
type EventPublisher interface {
	Publish(event *model.InstrumentEvent)
}

type noopPublisher struct{}

func (noopPublisher) Publish(*model.InstrumentEvent) {}

func publish(p EventPublisher, eventType model.EventType, source string, runID *uuid.UUID, data model.JSONObject) {
	event := model.NewInstrumentEvent(eventType, source, data)
	event.RunID = runID
	p.Publish(event)
}

// driverEventHandler turns driver callbacks into published events
type driverEventHandler struct {
	publisher EventPublisher
	logger    *zap.Logger
}

func newDriverEventHandler(publisher EventPublisher, logger *zap.Logger) *driverEventHandler {
	return &driverEventHandler{publisher: publisher, logger: logger}
}

func (h *driverEventHandler) OnInstrumentConnected(name string) {
	publish(h.publisher, model.EventInstrumentConnected, name, nil, model.JSONObject{
		"status":  string(model.InstrumentStatusOnline),
		"message": "Instrument connected successfully",
	})
	h.logger.Info("Instrument connected event published", zap.String("instrument", name))
}

func (h *driverEventHandler) OnInstrumentDisconnected(name string, reason string) {
	publish(h.publisher, model.EventInstrumentDisconnected, name, nil, model.JSONObject{
		"status": string(model.InstrumentStatusOffline),
		"reason": reason,
	})
	h.logger.Info("Instrument disconnected event published",
		zap.String("instrument", name),
		zap.String("reason", reason),
	)
}

func (h *driverEventHandler) OnInstrumentError(name string, err error) {
	publish(h.publisher, model.EventInstrumentError, name, nil, model.JSONObject{
		"error": err.Error(),
	})
	h.logger.Warn("Instrument error event published",
		zap.String("instrument", name),
		zap.Error(err),
	)
}

func (h *driverEventHandler) OnStatusChanged(name string, oldStatus, newStatus model.InstrumentStatus) {
	publish(h.publisher, model.EventStatusChanged, name, nil, model.JSONObject{
		"old_status": string(oldStatus),
		"new_status": string(newStatus),
	})
	h.logger.Debug("Instrument status changed",
		zap.String("instrument", name),
		zap.String("old_status", string(oldStatus)),
		zap.String("new_status", string(newStatus)),
	)
}
