// internal/service/transport.go
package service

import (
	"fmt"

	"go.uber.org/zap"

	"tachymeter-service/internal/driver/geocom"
	"tachymeter-service/internal/model"
	"tachymeter-service/internal/protocol"
	"tachymeter-service/internal/simulator"
)

// NewTransportFactory picks the line backend for a connection config.
// Simulator lines are answered by sim.
func NewTransportFactory(sim *simulator.Instrument, logger *zap.Logger) geocom.TransportFactory {
	return func(config protocol.ConnectionConfig) (protocol.Transport, error) {
		if config.Type == model.ConnectionTypeSimulator {
			if sim == nil {
				return nil, fmt.Errorf("simulator transport requested but no simulator is configured")
			}
			return sim.Transport(logger), nil
		}
		return protocol.CreateTransport(config, logger)
	}
}
