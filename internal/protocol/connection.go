// internal/protocol/connection.go
package protocol

import (
	"fmt"
	"time"

	"tachymeter-service/internal/model"
)

// ConnectionConfig fully describes the line to the instrument.
// It is passed by value and never modified after Open.
type ConnectionConfig struct {
	Type        model.ConnectionType `json:"type" mapstructure:"type"`
	Port        string               `json:"port" mapstructure:"port"`
	BaudRate    int                  `json:"baud_rate" mapstructure:"baud_rate"`
	DataBits    int                  `json:"data_bits" mapstructure:"data_bits"`
	Parity      string               `json:"parity" mapstructure:"parity"`             // none, odd, even, mark, space
	FlowControl string               `json:"flow_control" mapstructure:"flow_control"` // none, hardware, software
	StopBits    int                  `json:"stop_bits" mapstructure:"stop_bits"`       // 1 or 2

	// TCP bridge settings
	Host        string        `json:"host,omitempty" mapstructure:"host"`
	TCPPort     int           `json:"tcp_port,omitempty" mapstructure:"tcp_port"`
	DialTimeout time.Duration `json:"dial_timeout,omitempty" mapstructure:"dial_timeout"`
	KeepAlive   bool          `json:"keep_alive,omitempty" mapstructure:"keep_alive"`

	// PollInterval is the read pump granularity; it bounds how long Close
	// waits for the pump to notice.
	PollInterval time.Duration `json:"poll_interval,omitempty" mapstructure:"poll_interval"`
}

// DefaultConnectionConfig returns the line settings used by GeoCOM instruments out of the box
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Type:         model.ConnectionTypeSerial,
		BaudRate:     19200,
		DataBits:     8,
		Parity:       "none",
		FlowControl:  "none",
		StopBits:     1,
		DialTimeout:  10 * time.Second,
		PollInterval: 50 * time.Millisecond,
	}
}

// Address returns a printable endpoint for logs
func (c ConnectionConfig) Address() string {
	if c.Type == model.ConnectionTypeTCP {
		return fmt.Sprintf("%s:%d", c.Host, c.TCPPort)
	}
	return c.Port
}

// Validate checks the line settings that every backend depends on
func (c ConnectionConfig) Validate() error {
	switch c.Type {
	case model.ConnectionTypeSerial, model.ConnectionTypeSerialTarm:
		if c.Port == "" {
			return fmt.Errorf("serial port is required")
		}
		if c.BaudRate <= 0 {
			return fmt.Errorf("invalid baud rate: %d", c.BaudRate)
		}
		if c.DataBits < 5 || c.DataBits > 8 {
			return fmt.Errorf("invalid data bits: %d", c.DataBits)
		}
		if c.StopBits != 1 && c.StopBits != 2 {
			return fmt.Errorf("invalid stop bits: %d", c.StopBits)
		}
		switch c.Parity {
		case "", "none", "odd", "even", "mark", "space":
		default:
			return fmt.Errorf("invalid parity: %s", c.Parity)
		}
		switch c.FlowControl {
		case "", "none":
		case "hardware", "software":
			return fmt.Errorf("flow control %q is not supported by the serial backends", c.FlowControl)
		default:
			return fmt.Errorf("invalid flow control: %s", c.FlowControl)
		}
	case model.ConnectionTypeTCP:
		if c.Host == "" {
			return fmt.Errorf("TCP host is required")
		}
		if c.TCPPort <= 0 || c.TCPPort > 65535 {
			return fmt.Errorf("invalid TCP port: %d", c.TCPPort)
		}
	case model.ConnectionTypeSimulator:
	default:
		return fmt.Errorf("unsupported connection type: %s", c.Type)
	}
	return nil
}

func (c ConnectionConfig) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return 50 * time.Millisecond
	}
	return c.PollInterval
}
