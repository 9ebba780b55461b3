// internal/protocol/base.go
package protocol

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// baseConnection carries the state shared by every stream transport:
// open flag, statistics and the buffered receive side.
type baseConnection struct {
	config  ConnectionConfig
	logger  *zap.Logger
	mutex   sync.RWMutex
	isOpen  bool
	closing atomic.Bool
	rx      *readBuffer

	statsMu sync.Mutex
	stats   ProtocolStats
}

func (bc *baseConnection) setup(config ConnectionConfig, logger *zap.Logger, protocolName string) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bc.config = config
	bc.logger = logger.With(
		zap.String("protocol", protocolName),
		zap.String("address", config.Address()),
	)
}

// markOpen must be called with mutex held for writing.
func (bc *baseConnection) markOpen() {
	bc.closing.Store(false)
	bc.rx = newReadBuffer()
	bc.isOpen = true

	bc.statsMu.Lock()
	bc.stats.IsConnected = true
	bc.stats.LastActivity = time.Now()
	bc.statsMu.Unlock()
}

// startPump must be called with mutex held for writing.
func (bc *baseConnection) startPump(read func([]byte) (int, error)) {
	bc.markOpen()
	go bc.rx.pump(read, bc.closing.Load, bc.logger)
}

// stopPump must be called with mutex held for writing, after the
// underlying handle has been closed.
func (bc *baseConnection) stopPump() {
	bc.isOpen = false

	bc.statsMu.Lock()
	bc.stats.IsConnected = false
	bc.statsMu.Unlock()

	if bc.rx == nil {
		return
	}
	select {
	case <-bc.rx.done:
	case <-time.After(2 * time.Second):
		bc.logger.Warn("Read pump did not stop in time")
	}
}

// IsOpen returns whether the connection is open
func (bc *baseConnection) IsOpen() bool {
	bc.mutex.RLock()
	defer bc.mutex.RUnlock()
	return bc.isOpen
}

// ReadAvailable drains whatever the read pump has collected so far
func (bc *baseConnection) ReadAvailable() ([]byte, error) {
	bc.mutex.RLock()
	rx, open := bc.rx, bc.isOpen
	bc.mutex.RUnlock()

	if !open || rx == nil {
		return nil, ErrNotOpen
	}

	data, err := rx.readAll()
	if err != nil {
		bc.recordError()
		return nil, err
	}
	if len(data) > 0 {
		bc.statsMu.Lock()
		bc.stats.BytesRead += int64(len(data))
		bc.stats.LastActivity = time.Now()
		bc.statsMu.Unlock()
	}
	return data, nil
}

// WaitForData blocks until received bytes are buffered or timeout elapses
func (bc *baseConnection) WaitForData(ctx context.Context, timeout time.Duration) (bool, error) {
	bc.mutex.RLock()
	rx, open := bc.rx, bc.isOpen
	bc.mutex.RUnlock()

	if !open || rx == nil {
		return false, ErrNotOpen
	}
	return rx.wait(ctx, timeout)
}

// Stats returns a snapshot of the connection statistics
func (bc *baseConnection) Stats() ProtocolStats {
	bc.statsMu.Lock()
	defer bc.statsMu.Unlock()
	return bc.stats
}

func (bc *baseConnection) recordWrite(n int, latency time.Duration) {
	bc.statsMu.Lock()
	defer bc.statsMu.Unlock()
	bc.stats.BytesWritten += int64(n)
	bc.stats.OperationCount++
	bc.stats.LastActivity = time.Now()
	bc.stats.updateAverageLatency(latency)
}

func (bc *baseConnection) recordError() {
	bc.statsMu.Lock()
	bc.stats.ErrorCount++
	bc.statsMu.Unlock()
}

// writeWithContext runs a blocking write and gives up when ctx ends.
// The write itself keeps running in the background in that case.
func writeWithContext(ctx context.Context, write func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	done := make(chan error, 1)
	go func() {
		done <- write()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
