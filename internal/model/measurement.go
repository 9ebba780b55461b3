// internal/model/measurement.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RunStatus represents the status of a measurement run
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSuccess   RunStatus = "SUCCESS"
	RunStatusPartial   RunStatus = "PARTIAL"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// MeasurementRun is one call of the measurement sequencer together with its outcome
type MeasurementRun struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	Instrument     string        `json:"instrument" db:"instrument"`
	Config         JSONObject    `json:"config" db:"config"`
	MathConvention bool          `json:"math_convention" db:"math_convention"`
	Status         RunStatus     `json:"status" db:"status"`
	Expected       int           `json:"expected" db:"expected"`
	StartedAt      time.Time     `json:"started_at" db:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at" db:"completed_at"`
	DurationMs     *int          `json:"duration_ms" db:"duration_ms"`
	ErrorMessage   *string       `json:"error_message" db:"error_message"`
	Measurements   []Measurement `json:"measurements"`
	Failures       []StepFailure `json:"failures,omitempty"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// Measurement is one stored polar observation, in acquisition order
type Measurement struct {
	RunID         uuid.UUID       `json:"-" db:"run_id"`
	Sequence      int             `json:"sequence" db:"sequence"`
	Iteration     int             `json:"iteration" db:"iteration"`
	Face          int             `json:"face" db:"face"`
	Azimuth       decimal.Decimal `json:"azimuth" db:"azimuth"`
	Zenith        decimal.Decimal `json:"zenith" db:"zenith"`
	SlopeDistance decimal.Decimal `json:"slope_distance" db:"slope_distance"`
	DistanceValid bool            `json:"distance_valid" db:"distance_valid"`
}

// StepFailure records a sub-step of a run that did not succeed
type StepFailure struct {
	Iteration int    `json:"iteration"`
	Face      int    `json:"face"`
	Step      string `json:"step"`
	Error     string `json:"error"`
}

// IsCompleted checks if the run has finished, successfully or not
func (r *MeasurementRun) IsCompleted() bool {
	return r.Status == RunStatusSuccess ||
		r.Status == RunStatusPartial ||
		r.Status == RunStatusFailed ||
		r.Status == RunStatusCancelled
}

// Complete stamps the run with its final status
func (r *MeasurementRun) Complete(status RunStatus, err error) {
	now := time.Now()
	duration := int(now.Sub(r.StartedAt).Milliseconds())
	r.Status = status
	r.CompletedAt = &now
	r.DurationMs = &duration
	if err != nil {
		msg := err.Error()
		r.ErrorMessage = &msg
	}
}

// NewMeasurement converts raw float readings to a stored measurement.
// Angles keep 10 decimals (sub-microradian), distances 5 (hundredth of a mm).
func NewMeasurement(seq, iteration, face int, azimuth, zenith, distance float64, distanceValid bool) Measurement {
	return Measurement{
		Sequence:      seq,
		Iteration:     iteration,
		Face:          face,
		Azimuth:       decimal.NewFromFloat(azimuth).Round(10),
		Zenith:        decimal.NewFromFloat(zenith).Round(10),
		SlopeDistance: decimal.NewFromFloat(distance).Round(5),
		DistanceValid: distanceValid,
	}
}
