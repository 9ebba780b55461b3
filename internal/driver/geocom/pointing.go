// internal/driver/geocom/pointing.go
package geocom

import (
	"context"
	"fmt"
	"math"
)

// NormalizeAzimuth maps an azimuth onto the instrument convention. A value
// at or below zero is shifted by one full turn; useMath converts from the
// counter-clockwise convention.
func NormalizeAzimuth(useMath bool, azimuth float64) float64 {
	if azimuth <= 0 {
		azimuth += 2 * math.Pi
	}
	if useMath {
		azimuth = toMathAzimuth(azimuth)
	}
	return azimuth
}

// Point aims the telescope at (azimuth, zenith). distance is accepted for
// call compatibility and not sent. Relative pointing is not supported.
func Point(ctx context.Context, c Commander, useMath bool, azimuth, zenith, distance float64, relative bool) error {
	if relative {
		return &CommandError{Opcode: Opcodes.MakePositioning, Err: ErrNotImplemented}
	}

	az := NormalizeAzimuth(useMath, azimuth)
	frame, err := Encode(Opcodes.MakePositioning, az, zenith, 0, 0, 0)
	if err != nil {
		return &CommandError{Opcode: Opcodes.MakePositioning, Err: fmt.Errorf("%w: %w", ErrInvalidConfig, err)}
	}
	reply, err := c.Execute(ctx, frame)
	if err != nil {
		return err
	}
	return checkReturnCode(Opcodes.MakePositioning, reply)
}

// ToggleSightOrientation turns the telescope to the other face
func ToggleSightOrientation(ctx context.Context, c Commander) error {
	reply, err := c.Execute(ctx, mustEncode(Opcodes.ChangeFace, 0, 0, 0))
	if err != nil {
		return err
	}
	return checkReturnCode(Opcodes.ChangeFace, reply)
}

// checkReturnCode fails on a GeoCOM header with a non-zero return code.
// Replies without a header are accepted.
func checkReturnCode(opcode string, reply *Reply) error {
	if rc, ok := reply.ReturnCode(); ok && rc != 0 {
		return &InstrumentError{Opcode: opcode, ReturnCode: rc}
	}
	return nil
}
