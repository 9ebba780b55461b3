// internal/driver/geocom/errors.go
package geocom

import (
	"errors"
	"fmt"
)

var (
	ErrTransportNotOpen = errors.New("transport not open")
	ErrWriteTimeout     = errors.New("write did not complete in time")
	ErrReplyTimeout     = errors.New("no reply within timeout")
	ErrModeQueryFailed  = errors.New("measurement mode query failed")
	ErrModeSwitchFailed = errors.New("measurement mode switch failed")
	ErrEDMFailed        = errors.New("distance measurement failed")
	ErrMalformedReply   = errors.New("malformed reply")
	ErrNotImplemented   = errors.New("not implemented")
	ErrTransport        = errors.New("transport error")
	ErrInvalidConfig    = errors.New("invalid measurement config")
)

// CommandError ties a failure to the opcode that was being executed
type CommandError struct {
	Opcode string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s: %v", e.Opcode, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// InstrumentError is a well-formed reply carrying a non-zero GeoCOM return code
type InstrumentError struct {
	Opcode     string
	ReturnCode int
}

func (e *InstrumentError) Error() string {
	return fmt.Sprintf("command %s: instrument returned code %d", e.Opcode, e.ReturnCode)
}
