// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"tachymeter-service/internal/model"
)

// SerialConnection implements Transport on top of go.bug.st/serial
type SerialConnection struct {
	baseConnection
	port serial.Port
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config ConnectionConfig, logger *zap.Logger) *SerialConnection {
	sc := &SerialConnection{}
	sc.setup(config, logger, "serial")
	return sc
}

// serialMode maps the line settings onto a go.bug.st/serial mode
func serialMode(config ConnectionConfig) *serial.Mode {
	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: config.DataBits,
		StopBits: serial.OneStopBit,
	}
	if config.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode
}

// Open opens the serial port and starts the read pump
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sc.logger.Info("Opening serial port",
		zap.String("port", sc.config.Port),
		zap.Int("baud_rate", sc.config.BaudRate),
	)

	port, err := serial.Open(sc.config.Port, serialMode(sc.config))
	if err != nil {
		sc.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port %s: %w", sc.config.Port, err)
	}

	if err := port.SetReadTimeout(sc.config.pollInterval()); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	sc.port = port
	sc.startPump(port.Read)

	sc.logger.Info("Serial port opened successfully")
	return nil
}

// Close closes the serial port
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	sc.closing.Store(true)
	err := sc.port.Close()
	sc.stopPump()
	sc.port = nil

	if err != nil {
		sc.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	sc.logger.Info("Serial port closed successfully")
	return nil
}

// Write writes data and waits until the driver has transmitted it
func (sc *SerialConnection) Write(ctx context.Context, data []byte) error {
	sc.mutex.RLock()
	port, open := sc.port, sc.isOpen
	sc.mutex.RUnlock()

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
		return port.Drain()
	})
	if err != nil {
		sc.recordError()
		sc.logger.Error("Serial write failed", zap.Error(err))
		return fmt.Errorf("failed to write to serial port: %w", err)
	}

	sc.recordWrite(len(data), time.Since(startTime))
	sc.logger.Debug("Serial write completed", zap.Int("bytes", len(data)))
	return nil
}

// GetProtocolType returns the protocol type
func (sc *SerialConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeSerial
}
