// internal/protocol/factory.go
package protocol

import (
	"fmt"

	"go.uber.org/zap"

	"tachymeter-service/internal/model"
)

// CreateTransport creates a transport based on connection type and configuration.
// Simulator connections are built by the simulator package, not here.
func CreateTransport(config ConnectionConfig, logger *zap.Logger) (Transport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection config: %w", err)
	}

	switch config.Type {
	case model.ConnectionTypeSerial:
		logger.Info("Creating serial transport",
			zap.String("port", config.Port),
			zap.Int("baud_rate", config.BaudRate),
		)
		return NewSerialConnection(config, logger), nil

	case model.ConnectionTypeSerialTarm:
		logger.Info("Creating tarm serial transport",
			zap.String("port", config.Port),
			zap.Int("baud_rate", config.BaudRate),
		)
		return NewTarmConnection(config, logger), nil

	case model.ConnectionTypeTCP:
		logger.Info("Creating TCP transport",
			zap.String("host", config.Host),
			zap.Int("port", config.TCPPort),
		)
		return NewTCPConnection(config, logger), nil

	default:
		return nil, fmt.Errorf("unsupported transport type: %s", config.Type)
	}
}
