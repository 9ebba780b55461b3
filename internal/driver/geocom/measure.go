// internal/driver/geocom/measure.go
package geocom

import (
	"context"
	"fmt"
)

// TMC_GetSimpleMea arguments: wait time in ms, inclination mode
var anglesQueryArgs = []float64{5000, 1}

// Measure runs iterations × faces measurement cycles. Each cycle optionally
// triggers the EDM, reads angles and distance from the last three reply
// fields, and in two-face mode turns to the other face once the angle query
// was answered. The face is turned after the last face of an iteration as
// well, so the instrument enters the next iteration on the opposite face.
//
// With CollectAll, failed sub-steps are recorded in the attempts and the
// loop continues. With AbortOnFailure the first failure ends the run and is
// returned with the partial result.
func Measure(ctx context.Context, c Commander, useMath bool, cfg MeasurementConfig) (*MeasureResult, error) {
	result := &MeasureResult{}
	if err := cfg.Validate(); err != nil {
		return result, err
	}

	faceCount := cfg.FaceCount()
	for i := 0; i < cfg.Iterations; i++ {
		for f := 0; f < faceCount; f++ {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			attempt, err := measureOnce(ctx, c, useMath, cfg, result, i, f)
			result.Attempts = append(result.Attempts, attempt)
			if err != nil && cfg.abortOnFailure() {
				return result, fmt.Errorf("iteration %d face %d: %w", i, f, err)
			}
		}
	}
	return result, nil
}

// measureOnce runs one cycle and returns the first failure it saw, if any
func measureOnce(ctx context.Context, c Commander, useMath bool, cfg MeasurementConfig, result *MeasureResult, iteration, face int) (Attempt, error) {
	attempt := Attempt{Iteration: iteration, Face: face}
	var firstErr error
	record := func(step Step, err error) {
		attempt.Steps = append(attempt.Steps, StepOutcome{Step: step, Err: err})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if cfg.WithDistance {
		err := TriggerDistance(ctx, c, cfg.Reflectorless)
		record(StepEDM, err)
		attempt.DistanceValid = err == nil
		if err != nil && cfg.abortOnFailure() {
			return attempt, firstErr
		}
	}

	reply, err := c.Execute(ctx, mustEncode(Opcodes.GetAnglesDist, anglesQueryArgs...))
	if err != nil {
		record(StepAngles, err)
		return attempt, firstErr
	}

	values, err := reply.LastFloats(3)
	record(StepAngles, err)
	if err == nil {
		m := PolarMeasurement{Azimuth: values[0], Zenith: values[1], SlopeDistance: values[2]}
		if useMath {
			m.Azimuth = toMathAzimuth(m.Azimuth)
		}
		result.Measurements = append(result.Measurements, m)
		attempt.Acquired = true
	} else if cfg.abortOnFailure() {
		return attempt, firstErr
	}

	if cfg.FaceCount() == 2 {
		record(StepToggleFace, ToggleSightOrientation(ctx, c))
	}
	return attempt, firstErr
}
