// internal/model/instrument.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// InstrumentStatus represents the current status of the instrument session
type InstrumentStatus string

const (
	InstrumentStatusOnline     InstrumentStatus = "ONLINE"
	InstrumentStatusOffline    InstrumentStatus = "OFFLINE"
	InstrumentStatusError      InstrumentStatus = "ERROR"
	InstrumentStatusConnecting InstrumentStatus = "CONNECTING"
	InstrumentStatusMeasuring  InstrumentStatus = "MEASURING"
)

// ConnectionType represents how the instrument is reached
type ConnectionType string

const (
	ConnectionTypeSerial     ConnectionType = "SERIAL"
	ConnectionTypeSerialTarm ConnectionType = "SERIAL_TARM"
	ConnectionTypeTCP        ConnectionType = "TCP"
	ConnectionTypeSimulator  ConnectionType = "SIMULATOR"
)

// InstrumentBrand represents supported instrument brands
type InstrumentBrand string

const (
	BrandLeica   InstrumentBrand = "LEICA"
	BrandGeneric InstrumentBrand = "GENERIC"
)

// Capability represents what an instrument can do
type Capability string

const (
	CapabilityAngles        Capability = "ANGLES"
	CapabilityDistance      Capability = "DISTANCE"
	CapabilityReflectorless Capability = "REFLECTORLESS"
	CapabilityMotorized     Capability = "MOTORIZED"
	CapabilityTwoFace       Capability = "TWO_FACE"
)

// JSONObject type for PostgreSQL JSONB objects
type JSONObject map[string]interface{}

func (j *JSONObject) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Instrument describes the instrument attached to this service
type Instrument struct {
	Name           string           `json:"name"`
	Brand          InstrumentBrand  `json:"brand"`
	Model          string           `json:"model"`
	ConnectionType ConnectionType   `json:"connection_type"`
	Port           string           `json:"port,omitempty"`
	Status         InstrumentStatus `json:"status"`
	Capabilities   []Capability     `json:"capabilities"`
	ConnectedAt    *time.Time       `json:"connected_at,omitempty"`
	LastPing       *time.Time       `json:"last_ping,omitempty"`
}

// HasCapability checks if instrument has specific capability
func (i *Instrument) HasCapability(capability Capability) bool {
	for _, c := range i.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// IsOnline checks if the instrument session is usable
func (i *Instrument) IsOnline() bool {
	return i.Status == InstrumentStatusOnline || i.Status == InstrumentStatusMeasuring
}
