// pkg/driver/types.go
package driver

import (
	"time"

	"tachymeter-service/internal/driver/geocom"
	"tachymeter-service/internal/model"
	"tachymeter-service/internal/protocol"
)

// InstrumentInfo contains basic instrument information
type InstrumentInfo struct {
	Brand          model.InstrumentBrand `json:"brand"`
	Model          string                `json:"model"`
	Name           string                `json:"name"`
	Capabilities   []model.Capability    `json:"capabilities"`
	ConnectionType model.ConnectionType  `json:"connection_type"`
	Manufacturer   string                `json:"manufacturer"`
}

// InstrumentStatus represents current instrument status
type InstrumentStatus struct {
	Status       model.InstrumentStatus `json:"status"`
	IsReady      bool                   `json:"is_ready"`
	HasError     bool                   `json:"has_error"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	LastResponse time.Time              `json:"last_response"`
	Transport    protocol.ProtocolStats `json:"transport"`
}

// HealthMetrics contains instrument health information
type HealthMetrics struct {
	HealthScore     int           `json:"health_score"` // 0-100
	ResponseTime    time.Duration `json:"response_time"`
	SuccessRate     float64       `json:"success_rate"` // 0.0-1.0
	ErrorCount      int64         `json:"error_count"`
	TotalOperations int64         `json:"total_operations"`
	LastErrorTime   *time.Time    `json:"last_error_time,omitempty"`
	LastSuccessTime *time.Time    `json:"last_success_time,omitempty"`
}

// PointRequest aims the instrument at a direction
type PointRequest struct {
	Azimuth  float64 `json:"azimuth"`
	Zenith   float64 `json:"zenith"`
	Distance float64 `json:"distance"`
	Relative bool    `json:"relative"`
	UseMath  bool    `json:"use_math"`
}

// Settings are handed to a driver factory by the registry
type Settings struct {
	Timeouts  geocom.Timeouts
	Transport geocom.TransportFactory
}
