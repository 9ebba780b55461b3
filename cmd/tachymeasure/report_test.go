package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"tachymeter-service/internal/model"
	"tachymeter-service/internal/service"
	"tachymeter-service/pkg/driver"
)

func sampleRun() *model.MeasurementRun {
	duration := 1250
	return &model.MeasurementRun{
		ID:         uuid.MustParse("0b9f4d2e-6a55-4c1e-8d0f-7c3b2a1e9f10"),
		Instrument: "station-1",
		Status:     model.RunStatusPartial,
		Expected:   2,
		StartedAt:  time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		DurationMs: &duration,
		Measurements: []model.Measurement{
			{
				Iteration:     0,
				Face:          1,
				Azimuth:       decimal.RequireFromString("1.2345"),
				Zenith:        decimal.RequireFromString("1.5708"),
				SlopeDistance: decimal.RequireFromString("12.5"),
				DistanceValid: true,
			},
		},
		Failures: []model.StepFailure{
			{Iteration: 0, Face: 2, Step: "edm", Error: "edm measurement failed"},
		},
	}
}

func TestNewReport(t *testing.T) {
	state := &service.InstrumentState{Info: &driver.InstrumentInfo{Name: "TM30"}}
	r := newReport(state, sampleRun())

	assert.Equal(t, "station-1", r.Instrument)
	assert.Equal(t, "TM30", r.ReportedName)
	assert.Equal(t, 1, r.Acquired)
	assert.Equal(t, 2, r.Expected)
	assert.Equal(t, 1250, r.DurationMs)
	require.Len(t, r.Measurements, 1)
	assert.Equal(t, "12.5", r.Measurements[0].SlopeDistance)
	assert.Len(t, r.Failures, 1)
}

func TestNewReportOmitsInvalidDistance(t *testing.T) {
	run := sampleRun()
	run.Measurements[0].DistanceValid = false

	r := newReport(nil, run)
	assert.Empty(t, r.Measurements[0].SlopeDistance)
	assert.Empty(t, r.ReportedName)
}

func TestEncodeReport(t *testing.T) {
	r := newReport(nil, sampleRun())

	out, err := encodeReport(r, "yaml")
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, "PARTIAL", decoded["status"])
	assert.Equal(t, "0b9f4d2e-6a55-4c1e-8d0f-7c3b2a1e9f10", decoded["run_id"])

	out, err = encodeReport(r, "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "station-1", decoded["instrument"])

	_, err = encodeReport(r, "xml")
	assert.Error(t, err)
}
