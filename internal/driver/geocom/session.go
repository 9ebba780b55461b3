// internal/driver/geocom/session.go
package geocom

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tachymeter-service/internal/protocol"
)

// TransportFactory builds an unopened transport for a connection config
type TransportFactory func(config protocol.ConnectionConfig) (protocol.Transport, error)

// Session owns one transport for its lifetime and serializes every command
// sent over it. cmdMu is held for the duration of a command, mu only while
// the handle fields are read or replaced.
type Session struct {
	cmdMu     sync.Mutex
	mu        sync.Mutex
	factory   TransportFactory
	timeouts  Timeouts
	logger    *zap.Logger
	transport protocol.Transport
	executor  *Executor
	config    protocol.ConnectionConfig
}

// NewSession creates a disconnected session
func NewSession(factory TransportFactory, timeouts Timeouts, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		factory:  factory,
		timeouts: timeouts,
		logger:   logger,
	}
}

// Connect opens a transport for config. An open session is closed first.
// When opening fails the new transport is released and the session stays
// disconnected.
func (s *Session) Connect(ctx context.Context, config protocol.ConnectionConfig) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()

	transport, err := s.factory(config)
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}

	if err := transport.Open(ctx); err != nil {
		transport.Close()
		return fmt.Errorf("failed to open %s: %w", config.Address(), err)
	}

	s.transport = transport
	s.executor = NewExecutor(transport, s.timeouts, s.logger)
	s.config = config

	s.logger.Info("Session connected",
		zap.String("address", config.Address()),
		zap.String("type", string(config.Type)),
	)
	return nil
}

// Disconnect closes the transport; it is a no-op on a closed session.
// It does not wait for an in-flight command, whose wait then fails.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if s.transport == nil {
		return nil
	}

	err := s.transport.Close()
	s.transport = nil
	s.executor = nil
	if err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	s.logger.Info("Session disconnected")
	return nil
}

// IsOpen reports whether the session holds an open transport
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport != nil && s.transport.IsOpen()
}

// Config returns the connection config of the current transport
func (s *Session) Config() protocol.ConnectionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Stats returns transport statistics, zero when disconnected
func (s *Session) Stats() protocol.ProtocolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport == nil {
		return protocol.ProtocolStats{}
	}
	return s.transport.Stats()
}

// withExecutor runs fn as the only outstanding command
func (s *Session) withExecutor(fn func(*Executor) error) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	s.mu.Lock()
	transport, executor := s.transport, s.executor
	s.mu.Unlock()

	if transport == nil || !transport.IsOpen() {
		return ErrTransportNotOpen
	}
	return fn(executor)
}

// EnsureMode makes the instrument's measurement program match cfg
func (s *Session) EnsureMode(ctx context.Context, cfg MeasurementConfig) error {
	return s.withExecutor(func(e *Executor) error {
		switched, err := EnsureMode(ctx, e, cfg)
		if err != nil {
			return err
		}
		if switched {
			s.logger.Info("Measurement program switched",
				zap.Bool("reflectorless", cfg.Reflectorless),
				zap.String("mode", string(cfg.Mode)),
			)
		}
		return nil
	})
}

// Point aims the instrument
func (s *Session) Point(ctx context.Context, useMath bool, azimuth, zenith, distance float64, relative bool) error {
	return s.withExecutor(func(e *Executor) error {
		return Point(ctx, e, useMath, azimuth, zenith, distance, relative)
	})
}

// ToggleSightOrientation turns the telescope to the other face
func (s *Session) ToggleSightOrientation(ctx context.Context) error {
	return s.withExecutor(func(e *Executor) error {
		return ToggleSightOrientation(ctx, e)
	})
}

// Measure runs the measurement loop. On a closed session nothing is sent
// and ErrTransportNotOpen is returned with an empty result.
func (s *Session) Measure(ctx context.Context, useMath bool, cfg MeasurementConfig) (*MeasureResult, error) {
	result := &MeasureResult{}
	err := s.withExecutor(func(e *Executor) error {
		var err error
		result, err = Measure(ctx, e, useMath, cfg)
		return err
	})
	return result, err
}

// InstrumentName asks the instrument for its model name
func (s *Session) InstrumentName(ctx context.Context) (string, error) {
	var name string
	err := s.withExecutor(func(e *Executor) error {
		reply, err := e.Execute(ctx, mustEncode(Opcodes.InstrumentName))
		if err != nil {
			return err
		}
		if err := checkReturnCode(Opcodes.InstrumentName, reply); err != nil {
			return err
		}
		name = reply.LastString()
		return nil
	})
	return name, err
}

// LiveData is reserved for a streaming watch window; instruments driven
// over GeoCOM here provide none.
func (s *Session) LiveData() map[string]interface{} {
	return map[string]interface{}{}
}
