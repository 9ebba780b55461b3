// internal/protocol/buffer.go
package protocol

import (
	"bytes"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// readBuffer collects bytes delivered by a pump goroutine and wakes waiters.
type readBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	err    error
	notify chan struct{}
	done   chan struct{}
}

func newReadBuffer() *readBuffer {
	return &readBuffer{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (b *readBuffer) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *readBuffer) append(p []byte) {
	b.mu.Lock()
	b.buf.Write(p)
	b.mu.Unlock()
	b.signal()
}

func (b *readBuffer) fail(err error) {
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()
	b.signal()
}

// readAll drains the buffer. The pump error is only reported once the
// buffer is empty so no received byte is lost.
func (b *readBuffer) readAll() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buf.Len() == 0 {
		return nil, b.err
	}
	data := make([]byte, b.buf.Len())
	copy(data, b.buf.Bytes())
	b.buf.Reset()
	return data, nil
}

func (b *readBuffer) wait(ctx context.Context, timeout time.Duration) (bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		b.mu.Lock()
		n, err := b.buf.Len(), b.err
		b.mu.Unlock()

		if n > 0 {
			return true, nil
		}
		if err != nil {
			return false, err
		}

		select {
		case <-b.notify:
		case <-timer.C:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// pump copies from read into the buffer until read fails. read must return
// (0, nil) when its poll interval elapses without data.
func (b *readBuffer) pump(read func([]byte) (int, error), closing func() bool, logger *zap.Logger) {
	defer close(b.done)

	chunk := make([]byte, 1024)
	for {
		n, err := read(chunk)
		if n > 0 {
			b.append(chunk[:n])
		}
		if err != nil {
			if closing() {
				b.fail(ErrNotOpen)
				return
			}
			logger.Error("Read pump stopped", zap.Error(err))
			b.fail(err)
			return
		}
		if closing() {
			b.fail(ErrNotOpen)
			return
		}
	}
}
