// internal/protocol/protocol.go
package protocol

import (
	"context"
	"errors"
	"time"

	"tachymeter-service/internal/model"
)

// ErrNotOpen is returned by transport operations on a closed connection
var ErrNotOpen = errors.New("connection not open")

// Transport is a byte stream to the instrument.
//
// A Transport is owned by exactly one session; it does not support
// concurrent Write calls from different goroutines.
type Transport interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Write returns once all bytes have been handed to the line. The caller
	// bounds the wait with the context deadline.
	Write(ctx context.Context, data []byte) error

	// ReadAvailable drains everything currently buffered without blocking.
	ReadAvailable() ([]byte, error)

	// WaitForData blocks until buffered data exists or timeout elapses.
	WaitForData(ctx context.Context, timeout time.Duration) (bool, error)

	// Protocol information
	GetProtocolType() model.ConnectionType
	Stats() ProtocolStats
}

// ProtocolStats provides protocol-level statistics
type ProtocolStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}

// updateAverageLatency updates the running average latency
func (s *ProtocolStats) updateAverageLatency(newLatency time.Duration) {
	if s.AverageLatency == 0 {
		s.AverageLatency = newLatency
	} else {
		s.AverageLatency = (s.AverageLatency + newLatency) / 2
	}
}
