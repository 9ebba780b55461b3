// internal/protocol/pipe_connection.go
package protocol

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tachymeter-service/internal/model"
)

// Responder answers a request written to a PipeConnection. It may call
// reply any number of times, synchronously or from another goroutine.
type Responder func(request []byte, reply func([]byte))

// PipeConnection is an in-process Transport backed by a Responder.
// The simulator and the tests use it in place of a physical line.
type PipeConnection struct {
	baseConnection
	respond Responder

	reqMu    sync.Mutex
	requests [][]byte
	writeErr error
	openErr  error
}

// NewPipeConnection creates a transport answered by respond
func NewPipeConnection(respond Responder, logger *zap.Logger) *PipeConnection {
	pc := &PipeConnection{respond: respond}
	pc.setup(ConnectionConfig{Type: model.ConnectionTypeSimulator, Port: "pipe"}, logger, "pipe")
	return pc
}

// FailOpen makes subsequent Open calls return err
func (pc *PipeConnection) FailOpen(err error) {
	pc.reqMu.Lock()
	pc.openErr = err
	pc.reqMu.Unlock()
}

// FailWrites makes subsequent Write calls return err; nil restores writes
func (pc *PipeConnection) FailWrites(err error) {
	pc.reqMu.Lock()
	pc.writeErr = err
	pc.reqMu.Unlock()
}

// Open marks the pipe open with an empty receive buffer
func (pc *PipeConnection) Open(ctx context.Context) error {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	if pc.isOpen {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pc.reqMu.Lock()
	openErr := pc.openErr
	pc.reqMu.Unlock()
	if openErr != nil {
		return openErr
	}

	pc.markOpen()
	pc.logger.Debug("Pipe opened")
	return nil
}

// Close discards buffered data and marks the pipe closed
func (pc *PipeConnection) Close() error {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	if !pc.isOpen {
		return nil
	}

	pc.closing.Store(true)
	pc.rx.fail(ErrNotOpen)
	close(pc.rx.done)
	pc.stopPump()

	pc.logger.Debug("Pipe closed")
	return nil
}

// Write hands the request to the responder
func (pc *PipeConnection) Write(ctx context.Context, data []byte) error {
	pc.mutex.RLock()
	rx, open := pc.rx, pc.isOpen
	pc.mutex.RUnlock()

	if !open || rx == nil {
		return ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pc.reqMu.Lock()
	writeErr := pc.writeErr
	if writeErr == nil {
		pc.requests = append(pc.requests, append([]byte(nil), data...))
	}
	pc.reqMu.Unlock()

	if writeErr != nil {
		pc.recordError()
		return writeErr
	}

	startTime := time.Now()
	if pc.respond != nil {
		pc.respond(data, rx.append)
	}
	pc.recordWrite(len(data), time.Since(startTime))
	return nil
}

// Inject delivers bytes as if the instrument had sent them unprompted
func (pc *PipeConnection) Inject(data []byte) {
	pc.mutex.RLock()
	rx := pc.rx
	pc.mutex.RUnlock()

	if rx != nil {
		rx.append(data)
	}
}

// Requests returns every frame written so far, oldest first
func (pc *PipeConnection) Requests() []string {
	pc.reqMu.Lock()
	defer pc.reqMu.Unlock()

	out := make([]string, len(pc.requests))
	for i, r := range pc.requests {
		out[i] = string(r)
	}
	return out
}

// GetProtocolType returns the protocol type
func (pc *PipeConnection) GetProtocolType() model.ConnectionType {
	return model.ConnectionTypeSimulator
}
