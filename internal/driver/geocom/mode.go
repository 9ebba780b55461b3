// internal/driver/geocom/mode.go
package geocom

import (
	"context"
	"fmt"
)

// Measurement program codes accepted by SetMeasProgram
const (
	programIRFast        = 1
	programIRPrecise     = 11
	programReflectorless = 3
)

// wantedProgram returns the reply signature of the program cfg needs and the
// code that switches to it.
func wantedProgram(cfg MeasurementConfig) (signature string, code float64) {
	if cfg.Reflectorless {
		return SignatureReflectorless, programReflectorless
	}
	if cfg.Mode == ModePrecise {
		return SignatureIRPrecise, programIRPrecise
	}
	return SignatureIRFast, programIRFast
}

// EnsureMode queries the active measurement program and switches only when it
// differs from the one cfg asks for. The reply to a switch is not inspected.
// An unknown mode fails with ErrInvalidConfig before anything is sent.
func EnsureMode(ctx context.Context, c Commander, cfg MeasurementConfig) (switched bool, err error) {
	if err := cfg.validateMode(); err != nil {
		return false, err
	}

	reply, err := c.Execute(ctx, mustEncode(Opcodes.GetMeasProgram))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrModeQueryFailed, err)
	}

	signature, code := wantedProgram(cfg)
	if reply.Contains(signature) {
		return false, nil
	}

	if _, err := c.Execute(ctx, mustEncode(Opcodes.SetMeasProgram, code)); err != nil {
		return false, fmt.Errorf("%w: %w", ErrModeSwitchFailed, err)
	}
	return true, nil
}
