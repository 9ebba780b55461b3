// pkg/driver/interfaces.go
package driver

import (
	"context"

	"tachymeter-service/internal/driver/geocom"
	"tachymeter-service/internal/model"
	"tachymeter-service/internal/protocol"
)

// InstrumentDriver is the interface every total-station driver implements
type InstrumentDriver interface {
	// Connection management
	Connect(ctx context.Context, config protocol.ConnectionConfig) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	// Instrument information
	GetInstrumentInfo() *InstrumentInfo
	GetCapabilities() []model.Capability
	GetStatus() *InstrumentStatus

	// Operations
	EnsureMode(ctx context.Context, cfg geocom.MeasurementConfig) error
	Point(ctx context.Context, req PointRequest) error
	ToggleFace(ctx context.Context) error
	Measure(ctx context.Context, useMath bool, cfg geocom.MeasurementConfig) (*geocom.MeasureResult, error)
	LiveData(ctx context.Context) map[string]interface{}

	// Health and monitoring
	Ping(ctx context.Context) error
	GetHealthMetrics() *HealthMetrics

	// Event handling
	SetEventHandler(handler EventHandler)

	// Cleanup
	Close() error
}

// EventHandler handles instrument events
type EventHandler interface {
	OnInstrumentConnected(name string)
	OnInstrumentDisconnected(name string, reason string)
	OnInstrumentError(name string, err error)
	OnStatusChanged(name string, oldStatus, newStatus model.InstrumentStatus)
}
