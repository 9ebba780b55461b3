// cmd/tachymeasure/report.go
package main

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"tachymeter-service/internal/model"
	"tachymeter-service/internal/service"
)

// report is the printed result of one measurement run
type report struct {
	Instrument   string              `json:"instrument" yaml:"instrument"`
	ReportedName string              `json:"reported_name,omitempty" yaml:"reported_name,omitempty"`
	RunID        string              `json:"run_id" yaml:"run_id"`
	Status       model.RunStatus     `json:"status" yaml:"status"`
	Expected     int                 `json:"expected" yaml:"expected"`
	Acquired     int                 `json:"acquired" yaml:"acquired"`
	Math         bool                `json:"math_convention" yaml:"math_convention"`
	StartedAt    time.Time           `json:"started_at" yaml:"started_at"`
	DurationMs   int                 `json:"duration_ms" yaml:"duration_ms"`
	Error        string              `json:"error,omitempty" yaml:"error,omitempty"`
	Measurements []reportPoint       `json:"measurements" yaml:"measurements"`
	Failures     []model.StepFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
}

type reportPoint struct {
	Iteration     int    `json:"iteration" yaml:"iteration"`
	Face          int    `json:"face" yaml:"face"`
	Azimuth       string `json:"azimuth" yaml:"azimuth"`
	Zenith        string `json:"zenith" yaml:"zenith"`
	SlopeDistance string `json:"slope_distance,omitempty" yaml:"slope_distance,omitempty"`
}

func newReport(state *service.InstrumentState, run *model.MeasurementRun) *report {
	r := &report{
		Instrument:   run.Instrument,
		RunID:        run.ID.String(),
		Status:       run.Status,
		Expected:     run.Expected,
		Acquired:     len(run.Measurements),
		Math:         run.MathConvention,
		StartedAt:    run.StartedAt,
		Measurements: make([]reportPoint, 0, len(run.Measurements)),
		Failures:     run.Failures,
	}
	if state != nil && state.Info != nil {
		r.ReportedName = state.Info.Name
	}
	if run.DurationMs != nil {
		r.DurationMs = *run.DurationMs
	}
	if run.ErrorMessage != nil {
		r.Error = *run.ErrorMessage
	}

	for _, m := range run.Measurements {
		p := reportPoint{
			Iteration: m.Iteration,
			Face:      m.Face,
			Azimuth:   m.Azimuth.String(),
			Zenith:    m.Zenith.String(),
		}
		if m.DistanceValid {
			p.SlopeDistance = m.SlopeDistance.String()
		}
		r.Measurements = append(r.Measurements, p)
	}
	return r
}

func encodeReport(r *report, format string) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(r)
	case "json":
		out, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
