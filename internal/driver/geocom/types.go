// internal/driver/geocom/types.go
package geocom

import (
	"fmt"
	"math"
	"time"
)

// MeasureMode selects the reflector EDM program
type MeasureMode string

const (
	ModeFast    MeasureMode = "fast"
	ModePrecise MeasureMode = "precise"
)

// FailurePolicy decides whether a failing sub-step ends the run
type FailurePolicy string

const (
	CollectAll     FailurePolicy = "collect_all"
	AbortOnFailure FailurePolicy = "abort_on_failure"
)

// MeasurementConfig drives both mode negotiation and the measurement loop
type MeasurementConfig struct {
	Reflectorless bool          `json:"reflectorless" yaml:"reflectorless" mapstructure:"reflectorless"`
	Mode          MeasureMode   `json:"mode" yaml:"mode" mapstructure:"mode"`
	Iterations    int           `json:"iterations" yaml:"iterations" mapstructure:"iterations"`
	TwoFace       bool          `json:"two_face" yaml:"two_face" mapstructure:"two_face"`
	WithDistance  bool          `json:"with_distance" yaml:"with_distance" mapstructure:"with_distance"`
	Policy        FailurePolicy `json:"policy,omitempty" yaml:"policy,omitempty" mapstructure:"policy"`
}

// Validate checks the loop shape
func (c MeasurementConfig) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalidConfig, c.Iterations)
	}
	if err := c.validateMode(); err != nil {
		return err
	}
	switch c.Policy {
	case "", CollectAll, AbortOnFailure:
	default:
		return fmt.Errorf("%w: unknown failure policy %q", ErrInvalidConfig, c.Policy)
	}
	return nil
}

// validateMode checks the part of the config that selects a measurement
// program. Mode is ignored when reflectorless.
func (c MeasurementConfig) validateMode() error {
	if c.Reflectorless {
		return nil
	}
	switch c.Mode {
	case ModeFast, ModePrecise:
		return nil
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
}

// FaceCount is 2 for two-face measurement, otherwise 1
func (c MeasurementConfig) FaceCount() int {
	if c.TwoFace {
		return 2
	}
	return 1
}

func (c MeasurementConfig) abortOnFailure() bool {
	return c.Policy == AbortOnFailure
}

// PolarMeasurement is one (azimuth, zenith, slope distance) triple
type PolarMeasurement struct {
	Azimuth       float64 `json:"azimuth" yaml:"azimuth"`
	Zenith        float64 `json:"zenith" yaml:"zenith"`
	SlopeDistance float64 `json:"slope_distance" yaml:"slope_distance"`
}

// Step names a sub-step of one measurement attempt
type Step string

const (
	StepEDM        Step = "edm"
	StepAngles     Step = "angles"
	StepToggleFace Step = "toggle_face"
)

// StepOutcome is the result of one sub-step; Err is nil on success
type StepOutcome struct {
	Step Step
	Err  error
}

// Attempt collects the outcomes of one (iteration, face) cycle
type Attempt struct {
	Iteration     int
	Face          int
	Steps         []StepOutcome
	Acquired      bool
	DistanceValid bool
}

// Failed returns the outcomes that carry an error
func (a Attempt) Failed() []StepOutcome {
	var failed []StepOutcome
	for _, s := range a.Steps {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

// MeasureResult holds measurements in acquisition order (iteration-major,
// face-minor) together with the per-attempt outcomes.
type MeasureResult struct {
	Measurements []PolarMeasurement
	Attempts     []Attempt
}

// Complete reports whether every sub-step of every attempt succeeded
func (r *MeasureResult) Complete() bool {
	for _, a := range r.Attempts {
		if len(a.Failed()) > 0 {
			return false
		}
	}
	return true
}

// Timeouts are the named waits of the command executor
type Timeouts struct {
	// Write bounds the flush of one request
	Write time.Duration `json:"write" mapstructure:"write"`
	// Reply bounds the wait for the first reply byte
	Reply time.Duration `json:"reply" mapstructure:"reply"`
	// Quiescence is the silence that ends a reply
	Quiescence time.Duration `json:"quiescence" mapstructure:"quiescence"`
	// Receive caps one whole receive; zero leaves it unbounded
	Receive time.Duration `json:"receive" mapstructure:"receive"`
}

// DefaultTimeouts returns the timing GeoCOM instruments are driven with
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Write:      10 * time.Second,
		Reply:      10 * time.Second,
		Quiescence: time.Second,
		Receive:    30 * time.Second,
	}
}

// toMathAzimuth converts a clockwise azimuth to the counter-clockwise convention
func toMathAzimuth(azimuth float64) float64 {
	return 2*math.Pi - azimuth
}
