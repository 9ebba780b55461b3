// internal/driver/geocom/executor.go
package geocom

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tachymeter-service/internal/protocol"
)

// Commander executes one request and returns its reply
type Commander interface {
	Execute(ctx context.Context, frame Frame) (*Reply, error)
}

// Executor sends one frame at a time and collects exactly one reply
type Executor struct {
	transport protocol.Transport
	timeouts  Timeouts
	logger    *zap.Logger
}

// NewExecutor creates an executor over transport
func NewExecutor(transport protocol.Transport, timeouts Timeouts, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		transport: transport,
		timeouts:  timeouts,
		logger:    logger,
	}
}

// Execute writes frame, waits for the reply to start and receives it until
// the line goes quiet.
func (e *Executor) Execute(ctx context.Context, frame Frame) (*Reply, error) {
	if e.transport == nil || !e.transport.IsOpen() {
		return nil, &CommandError{Opcode: frame.Opcode, Err: ErrTransportNotOpen}
	}

	e.logger.Debug("GeoCOM request", zap.String("opcode", frame.Opcode), zap.ByteString("frame", frame.Bytes()))

	writeCtx, cancel := context.WithTimeout(ctx, e.timeouts.Write)
	err := e.transport.Write(writeCtx, frame.Bytes())
	cancel()
	if err != nil {
		e.drain(frame.Opcode, "write failed")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &CommandError{Opcode: frame.Opcode, Err: ctxErr}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &CommandError{Opcode: frame.Opcode, Err: ErrWriteTimeout}
		}
		return nil, &CommandError{Opcode: frame.Opcode, Err: fmt.Errorf("%w: %w", ErrTransport, err)}
	}

	ready, err := e.transport.WaitForData(ctx, e.timeouts.Reply)
	if err != nil {
		return nil, e.waitError(ctx, frame.Opcode, err)
	}
	if !ready {
		e.drain(frame.Opcode, "reply timeout")
		return nil, &CommandError{Opcode: frame.Opcode, Err: ErrReplyTimeout}
	}

	raw, err := e.receive(ctx)
	if err != nil {
		return nil, e.waitError(ctx, frame.Opcode, err)
	}

	e.logger.Debug("GeoCOM reply", zap.String("opcode", frame.Opcode), zap.ByteString("reply", raw))
	return Decode(raw), nil
}

// receive reads what is buffered, then keeps appending until one quiescence
// interval passes without new bytes or the overall receive cap is reached.
func (e *Executor) receive(ctx context.Context) ([]byte, error) {
	started := time.Now()

	data, err := e.transport.ReadAvailable()
	if err != nil {
		return nil, err
	}

	for {
		wait := e.timeouts.Quiescence
		if e.timeouts.Receive > 0 {
			remaining := e.timeouts.Receive - time.Since(started)
			if remaining <= 0 {
				e.logger.Warn("Receive cap reached, returning partial reply",
					zap.Duration("cap", e.timeouts.Receive),
					zap.Int("bytes", len(data)),
				)
				return data, nil
			}
			if remaining < wait {
				wait = remaining
			}
		}

		more, err := e.transport.WaitForData(ctx, wait)
		if err != nil {
			return nil, err
		}
		if !more {
			return data, nil
		}

		chunk, err := e.transport.ReadAvailable()
		if err != nil {
			return nil, err
		}
		data = append(data, chunk...)
	}
}

// drain discards whatever is buffered; the bytes are only logged
func (e *Executor) drain(opcode, reason string) {
	stale, err := e.transport.ReadAvailable()
	if err != nil {
		return
	}
	e.logger.Debug("Drained receive buffer",
		zap.String("opcode", opcode),
		zap.String("reason", reason),
		zap.ByteString("data", stale),
	)
}

func (e *Executor) waitError(ctx context.Context, opcode string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &CommandError{Opcode: opcode, Err: ctxErr}
	}
	return &CommandError{Opcode: opcode, Err: fmt.Errorf("%w: %w", ErrTransport, err)}
}
