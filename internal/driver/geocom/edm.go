// internal/driver/geocom/edm.go
package geocom

import (
	"context"
	"fmt"
)

// TMC_DoMeasure arguments: command, then the inclination mode
var (
	edmReflective    = []float64{1, 1}
	edmReflectorless = []float64{6, 1}
)

// TriggerDistance starts an EDM measurement. It succeeds only when the reply
// carries the plain success signature.
func TriggerDistance(ctx context.Context, c Commander, reflectorless bool) error {
	args := edmReflective
	if reflectorless {
		args = edmReflectorless
	}

	reply, err := c.Execute(ctx, mustEncode(Opcodes.MeasureDistance, args...))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEDMFailed, err)
	}
	if !reply.Contains(SignatureOK) {
		return fmt.Errorf("%w: unexpected reply %q", ErrEDMFailed, reply.Raw)
	}
	return nil
}
