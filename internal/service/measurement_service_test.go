package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tachymeter-service/internal/driver/geocom"
	"tachymeter-service/internal/model"
	"tachymeter-service/internal/repository"
	"tachymeter-service/internal/simulator"
)

func connected(t *testing.T, opts ...simulator.Option) *fixture {
	t.Helper()
	f := newFixture(t, opts...)
	_, err := f.instruments.Connect(context.Background(), nil, "")
	require.NoError(t, err)
	return f
}

func TestMeasureTwoFace(t *testing.T) {
	f := connected(t, simulator.WithAngles(1.0, 1.5), simulator.WithDistance(12.5))

	run, err := f.measurements.Measure(context.Background(), &MeasureRequest{
		Config: &geocom.MeasurementConfig{
			Mode:         geocom.ModePrecise,
			Iterations:   2,
			TwoFace:      true,
			WithDistance: true,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.Equal(t, 4, run.Expected)
	require.Len(t, run.Measurements, 4)
	assert.Empty(t, run.Failures)

	faces := []int{}
	for i, m := range run.Measurements {
		assert.Equal(t, i, m.Sequence)
		assert.Equal(t, i/2, m.Iteration)
		assert.True(t, m.DistanceValid)
		assert.Equal(t, "12.5", m.SlopeDistance.String())
		faces = append(faces, m.Face)
	}
	assert.Equal(t, []int{1, 2, 1, 2}, faces)

	stored, err := f.measurements.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, stored.Status)
	assert.Len(t, stored.Measurements, 4)

	assert.Equal(t, 1, f.publisher.count(model.EventRunStarted))
	assert.Equal(t, 4, f.publisher.count(model.EventMeasurementAcquired))
	assert.Equal(t, 1, f.publisher.count(model.EventRunCompleted))
	assert.Equal(t, 11, f.sim.State().Program)
}

func TestMeasureUsesConfiguredDefaults(t *testing.T) {
	f := connected(t)

	run, err := f.measurements.Measure(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.Len(t, run.Measurements, 1)
	assert.Equal(t, "collect_all", run.Config["policy"])
}

func TestMeasureCollectsEDMFailures(t *testing.T) {
	f := connected(t, simulator.WithEDMFailure())

	run, err := f.measurements.Measure(context.Background(), &MeasureRequest{
		Config: &geocom.MeasurementConfig{
			Mode:         geocom.ModeFast,
			Iterations:   2,
			WithDistance: true,
			Policy:       geocom.CollectAll,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusPartial, run.Status)
	require.Len(t, run.Measurements, 2)
	for _, m := range run.Measurements {
		assert.False(t, m.DistanceValid)
	}
	require.Len(t, run.Failures, 2)
	assert.Equal(t, "edm", run.Failures[0].Step)
	assert.Equal(t, 1, run.Failures[0].Face)
}

func TestMeasureAbortsOnFailure(t *testing.T) {
	f := connected(t, simulator.WithEDMFailure())

	run, err := f.measurements.Measure(context.Background(), &MeasureRequest{
		Config: &geocom.MeasurementConfig{
			Mode:         geocom.ModeFast,
			Iterations:   3,
			WithDistance: true,
			Policy:       geocom.AbortOnFailure,
		},
	})
	require.ErrorIs(t, err, geocom.ErrEDMFailed)
	require.NotNil(t, run)

	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Empty(t, run.Measurements)
	require.NotNil(t, run.ErrorMessage)

	stored, getErr := f.measurements.GetRun(context.Background(), run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.RunStatusFailed, stored.Status)
}

func TestMeasureFailsWhenModeQueryIsUnanswered(t *testing.T) {
	f := connected(t, simulator.WithSilentOpcodes("17018"))

	run, err := f.measurements.Measure(context.Background(), nil)
	require.ErrorIs(t, err, geocom.ErrModeQueryFailed)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Equal(t, 0, f.sim.Count("2108"))
}

func TestMeasureSkipModeCheck(t *testing.T) {
	f := connected(t, simulator.WithSilentOpcodes("17018"))

	run, err := f.measurements.Measure(context.Background(), &MeasureRequest{SkipModeCheck: true})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.Equal(t, 0, f.sim.Count("17018"))
}

func TestMeasureRejectsInvalidConfig(t *testing.T) {
	f := connected(t)

	run, err := f.measurements.Measure(context.Background(), &MeasureRequest{
		Config: &geocom.MeasurementConfig{Mode: geocom.ModeFast, Iterations: 0},
	})
	assert.ErrorIs(t, err, geocom.ErrInvalidConfig)
	assert.Nil(t, run)

	runs, _, err := f.measurements.ListRuns(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestMeasureWithoutConnection(t *testing.T) {
	f := newFixture(t)

	run, err := f.measurements.Measure(context.Background(), nil)
	assert.ErrorIs(t, err, geocom.ErrTransportNotOpen)
	assert.Nil(t, run)
}

func TestListRunsAndStats(t *testing.T) {
	f := connected(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.measurements.Measure(ctx, nil)
		require.NoError(t, err)
	}

	runs, pagination, err := f.measurements.ListRuns(ctx, &repository.RunFilter{PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, 3, pagination.Total)
	assert.Equal(t, 2, pagination.TotalPages)

	stats, err := f.measurements.GetRunStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRuns)
	assert.Equal(t, 3, stats.ByStatus[model.RunStatusSuccess])

	deleted, err := f.measurements.CleanupOldRuns(ctx)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestRunStatus(t *testing.T) {
	ok := &geocom.MeasureResult{Attempts: []geocom.Attempt{{Acquired: true}}}
	failed := &geocom.MeasureResult{Attempts: []geocom.Attempt{
		{Acquired: true, Steps: []geocom.StepOutcome{{Step: geocom.StepEDM, Err: geocom.ErrEDMFailed}}},
	}}

	withMeasurements := func(n, expected int) *model.MeasurementRun {
		return &model.MeasurementRun{Expected: expected, Measurements: make([]model.Measurement, n)}
	}

	tests := []struct {
		name   string
		run    *model.MeasurementRun
		result *geocom.MeasureResult
		err    error
		want   model.RunStatus
	}{
		{"complete", withMeasurements(1, 1), ok, nil, model.RunStatusSuccess},
		{"failed steps", withMeasurements(1, 1), failed, nil, model.RunStatusPartial},
		{"short", withMeasurements(1, 2), ok, nil, model.RunStatusPartial},
		{"nothing acquired", withMeasurements(0, 2), &geocom.MeasureResult{}, nil, model.RunStatusFailed},
		{"error with data", withMeasurements(1, 2), ok, geocom.ErrEDMFailed, model.RunStatusPartial},
		{"error without data", withMeasurements(0, 2), nil, geocom.ErrTransportNotOpen, model.RunStatusFailed},
		{"cancelled", withMeasurements(1, 2), ok, fmt.Errorf("iteration 1 face 0: %w", context.Canceled), model.RunStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runStatus(tt.run, tt.result, tt.err))
		})
	}
}

func TestConvertResult(t *testing.T) {
	result := &geocom.MeasureResult{
		Measurements: []geocom.PolarMeasurement{
			{Azimuth: 0.1, Zenith: 1.5, SlopeDistance: 10},
			{Azimuth: 3.2, Zenith: 4.7, SlopeDistance: 10},
		},
		Attempts: []geocom.Attempt{
			{Iteration: 0, Face: 0, Acquired: true, DistanceValid: true},
			{Iteration: 0, Face: 1, Steps: []geocom.StepOutcome{{Step: geocom.StepAngles, Err: geocom.ErrReplyTimeout}}},
			{Iteration: 1, Face: 0, Acquired: true},
		},
	}

	measurements, failures := convertResult(result)
	require.Len(t, measurements, 2)
	assert.Equal(t, 0, measurements[0].Iteration)
	assert.Equal(t, 1, measurements[0].Face)
	assert.True(t, measurements[0].DistanceValid)
	assert.Equal(t, 1, measurements[1].Iteration)
	assert.Equal(t, 1, measurements[1].Sequence)
	assert.Equal(t, "3.2", measurements[1].Azimuth.String())

	require.Len(t, failures, 1)
	assert.Equal(t, model.StepFailure{Iteration: 0, Face: 2, Step: "angles", Error: geocom.ErrReplyTimeout.Error()}, failures[0])
}
