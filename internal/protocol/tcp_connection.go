// internal/protocol/tcp_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"tachymeter-service/internal/model"
)

// TCPConnection implements Transport for serial-to-Ethernet bridges
type TCPConnection struct {
	baseConnection
	conn net.Conn
}

// NewTCPConnection creates a new TCP connection
func NewTCPConnection(config ConnectionConfig, logger *zap.Logger) *TCPConnection {
	tc := &TCPConnection{}
	tc.setup(config, logger, "tcp")
	return tc
}

// Open dials the bridge and starts the read pump
func (tc *TCPConnection) Open(ctx context.Context) error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if tc.isOpen {
		return nil
	}

	address := tc.config.Address()
	tc.logger.Info("Opening TCP connection", zap.String("address", address))

	dialer := &net.Dialer{Timeout: tc.config.DialTimeout}
	if tc.config.KeepAlive {
		dialer.KeepAlive = 30 * time.Second
	}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		tc.logger.Error("Failed to open TCP connection", zap.Error(err))
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	poll := tc.config.pollInterval()
	tc.conn = conn
	tc.startPump(func(p []byte) (int, error) {
		if err := conn.SetReadDeadline(time.Now().Add(poll)); err != nil {
			return 0, err
		}
		n, err := conn.Read(p)
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return n, nil
		}
		return n, err
	})

	tc.logger.Info("TCP connection opened successfully")
	return nil
}

// Close closes the TCP connection
func (tc *TCPConnection) Close() error {
	tc.mutex.Lock()
	defer tc.mutex.Unlock()

	if !tc.isOpen || tc.conn == nil {
		return nil
	}

	tc.closing.Store(true)
	err := tc.conn.Close()
	tc.stopPump()
	tc.conn = nil

	if err != nil {
		tc.logger.Error("Failed to close TCP connection", zap.Error(err))
		return fmt.Errorf("failed to close TCP connection: %w", err)
	}

	tc.logger.Info("TCP connection closed successfully")
	return nil
}

// Write writes data to the TCP connection
func (tc *TCPConnection) Write(ctx context.Context, data []byte) error {
	tc.mutex.RLock()
	conn, open := tc.conn, tc.isOpen
	tc.mutex.RUnlock()

	if !open || conn == nil {
		return ErrNotOpen
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	} else {
		conn.SetWriteDeadline(time.Time{})
	}

	startTime := time.Now()
	err := writeWithContext(ctx, func() error {
		n, err := conn.Write(data)
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
		tc.logger.Error("TCP write failed", zap.Error(err))
		return fmt.Errorf("failed to write to TCP connection: %w", err)
	}

	tc.recordWrite(len(data), time.Since(startTime))
	tc.logger.Debug("TCP write completed", zap.Int("bytes", len(data)))
	return nil
}

// GetProtocolType returns the protocol type
func (tc *TCPConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeTCP
}
