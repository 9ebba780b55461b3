// internal/protocol/tarm_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
	"go.uber.org/zap"

	"tachymeter-service/internal/model"
)

// TarmConnection implements Transport on top of github.com/tarm/serial.
// It is the fallback backend for adapters go.bug.st/serial cannot drive.
type TarmConnection struct {
	baseConnection
	port *serial.Port
}

// NewTarmConnection creates a new tarm serial connection
func NewTarmConnection(config ConnectionConfig, logger *zap.Logger) *TarmConnection {
	tc := &TarmConnection{}
	tc.setup(config, logger, "serial-tarm")
	return tc
}

func tarmConfig(config ConnectionConfig) *serial.Config {
	c := &serial.Config{
		Name:        config.Port,
		Baud:        config.BaudRate,
		ReadTimeout: config.pollInterval(),
		Size:        byte(config.DataBits),
		StopBits:    serial.Stop1,
	}
	if config.StopBits == 2 {
		c.StopBits = serial.Stop2
	}

	switch config.Parity {
	case "odd":
		c.Parity = serial.ParityOdd
	case "even":
		c.Parity = serial.ParityEven
	case "mark":
		c.Parity = serial.ParityMark
	case "space":
		c.Parity = serial.ParitySpace
	default:
		c.Parity = serial.ParityNone
	}
	return c
}

// Open opens the serial port and starts the read pump
func (tc *TarmConnection) Open(ctx context.Context) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.isOpen {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tc.logger.Info("Opening serial port",
		zap.String("port", tc.config.Port),
		zap.Int("baud_rate", tc.config.BaudRate),
	)

	port, err := serial.OpenPort(tarmConfig(tc.config))
	if err != nil {
		tc.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port %s: %w", tc.config.Port, err)
	}

	tc.port = port
	tc.startPump(func(p []byte) (int, error) {
		n, err := port.Read(p)
		// a read timeout surfaces as io.EOF with no data
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		return n, err
	})

	tc.logger.Info("Serial port opened successfully")
	return nil
}

// Close closes the serial port
func (tc *TarmConnection) Close() error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.port == nil {
		return nil
	}

	tc.closing.Store(true)
	err := tc.port.Close()
	tc.stopPump()
	tc.port = nil

	if err != nil {
		tc.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	tc.logger.Info("Serial port closed successfully")
	return nil
}

// Write writes data and flushes the port
func (tc *TarmConnection) Write(ctx context.Context, data []byte) error {
	tc.mutex.RLock()
	port, open := tc.port, tc.isOpen
	tc.mutex.RUnlock()

	if !open || port == nil {
		return ErrNotOpen
	}

	startTime := time.Now()
	err := writeWithContext(ctx, func() error {
		n, err := port.Write(data)
		if err != nil {
			return err
		}
		if n != len(data) {
			return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
		}
		return nil
	})
	if err != nil {
		tc.recordError()
		tc.logger.Error("Serial write failed", zap.Error(err))
		return fmt.Errorf("failed to write to serial port: %w", err)
	}

	tc.recordWrite(len(data), time.Since(startTime))
	tc.logger.Debug("Serial write completed", zap.Int("bytes", len(data)))
	return nil
}

// GetProtocolType returns the protocol type
func (tc *TarmConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeSerialTarm
}
