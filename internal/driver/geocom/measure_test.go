package geocom

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tachymeter-service/internal/simulator"
)

const fixedAngles = "0,0,0,1.5708,0.7854,10.0\r\n"

func TestMeasureSingleFace(t *testing.T) {
	_, exec := openPipe(t, scripted(map[string]string{"2108": fixedAngles}))

	result, err := Measure(context.Background(), exec, false, MeasurementConfig{Mode: ModeFast, Iterations: 1})
	require.NoError(t, err)
	require.Len(t, result.Measurements, 1)
	assert.Equal(t, PolarMeasurement{Azimuth: 1.5708, Zenith: 0.7854, SlopeDistance: 10.0}, result.Measurements[0])
	assert.True(t, result.Complete())
}

func TestMeasureMathConvention(t *testing.T) {
	_, exec := openPipe(t, scripted(map[string]string{"2108": fixedAngles}))

	result, err := Measure(context.Background(), exec, true, MeasurementConfig{Mode: ModeFast, Iterations: 1})
	require.NoError(t, err)
	require.Len(t, result.Measurements, 1)

	m := result.Measurements[0]
	assert.InDelta(t, 2*math.Pi-1.5708, m.Azimuth, 1e-12)
	assert.InDelta(t, 4.7124, m.Azimuth, 1e-4)
	assert.Equal(t, 0.7854, m.Zenith)
	assert.Equal(t, 10.0, m.SlopeDistance)
}

func TestMeasureEDMFailureDoesNotAbort(t *testing.T) {
	_, exec := openPipe(t, scripted(map[string]string{
		"2008": "%R1P,0,0:1285\r\n",
		"2108": fixedAngles,
	}))

	result, err := Measure(context.Background(), exec, false, MeasurementConfig{Mode: ModeFast, Iterations: 1, WithDistance: true})
	require.NoError(t, err)
	require.Len(t, result.Measurements, 1)
	assert.Equal(t, 1.5708, result.Measurements[0].Azimuth)

	require.Len(t, result.Attempts, 1)
	attempt := result.Attempts[0]
	assert.True(t, attempt.Acquired)
	assert.False(t, attempt.DistanceValid)
	require.Len(t, attempt.Failed(), 1)
	assert.Equal(t, StepEDM, attempt.Failed()[0].Step)
	assert.ErrorIs(t, attempt.Failed()[0].Err, ErrEDMFailed)
	assert.False(t, result.Complete())
}

func TestMeasureAbortOnFailure(t *testing.T) {
	_, exec := openPipe(t, scripted(map[string]string{
		"2008": "%R1P,0,0:1285\r\n",
		"2108": fixedAngles,
	}))

	cfg := MeasurementConfig{Mode: ModeFast, Iterations: 3, WithDistance: true, Policy: AbortOnFailure}
	result, err := Measure(context.Background(), exec, false, cfg)
	assert.ErrorIs(t, err, ErrEDMFailed)
	assert.Empty(t, result.Measurements)
	assert.Len(t, result.Attempts, 1)
}

func TestMeasureTwoFaceCount(t *testing.T) {
	sim, exec := openSimulator(t, simulator.WithAngles(1.0, 1.4), simulator.WithDistance(42.5))

	cfg := MeasurementConfig{Mode: ModeFast, Iterations: 3, TwoFace: true, WithDistance: true}
	result, err := Measure(context.Background(), exec, false, cfg)
	require.NoError(t, err)
	assert.Len(t, result.Measurements, 6)
	assert.Len(t, result.Attempts, 6)
	assert.True(t, result.Complete())

	// the face is turned after every face, including between iterations
	assert.Equal(t, 6, sim.Count("9028"))
	assert.Equal(t, 6, sim.Count("2008"))
	assert.Equal(t, 1, sim.State().Face)

	for i, a := range result.Attempts {
		assert.Equal(t, i/2, a.Iteration)
		assert.Equal(t, i%2, a.Face)
		assert.True(t, a.DistanceValid)
	}

	face1, face2 := result.Measurements[0], result.Measurements[1]
	assert.InDelta(t, 1.0, face1.Azimuth, 1e-9)
	assert.InDelta(t, 1.0+math.Pi, face2.Azimuth, 1e-9)
	assert.InDelta(t, 2*math.Pi-1.4, face2.Zenith, 1e-9)
	assert.Equal(t, 42.5, face2.SlopeDistance)
}

func TestMeasureNeverExceedsTwoPerIteration(t *testing.T) {
	sim, exec := openSimulator(t)
	sim.SetEDMFailure(true)

	cfg := MeasurementConfig{Mode: ModeFast, Iterations: 2, TwoFace: true, WithDistance: true}
	result, err := Measure(context.Background(), exec, false, cfg)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Measurements), 4)
	assert.False(t, result.Complete())
}

func TestMeasureStatusPreamble(t *testing.T) {
	_, exec := openSimulator(t, simulator.WithAngles(2.5, 1.25), simulator.WithDistance(7.75), simulator.WithStatusPreamble(9))

	result, err := Measure(context.Background(), exec, false, MeasurementConfig{Mode: ModeFast, Iterations: 1})
	require.NoError(t, err)
	require.Len(t, result.Measurements, 1)
	assert.Equal(t, PolarMeasurement{Azimuth: 2.5, Zenith: 1.25, SlopeDistance: 7.75}, result.Measurements[0])
}

func TestMeasureMalformedReply(t *testing.T) {
	pipe, exec := openPipe(t, scripted(map[string]string{
		"2108": "%R1P,0,0:0,abc\r\n",
		"9028": "%R1P,0,0:0\r\n",
	}))

	result, err := Measure(context.Background(), exec, false, MeasurementConfig{Mode: ModeFast, Iterations: 1, TwoFace: true})
	require.NoError(t, err)
	assert.Empty(t, result.Measurements)
	require.Len(t, result.Attempts, 2)
	assert.ErrorIs(t, result.Attempts[0].Failed()[0].Err, ErrMalformedReply)

	// the angle query was answered, so the face is still turned
	assert.Equal(t, 2, countOpcode(pipe.Requests(), "9028"))
}

func TestMeasureNoToggleWithoutAngleReply(t *testing.T) {
	pipe, exec := openPipe(t, scripted(map[string]string{
		"9028": "%R1P,0,0:0\r\n",
	}))

	result, err := Measure(context.Background(), exec, false, MeasurementConfig{Mode: ModeFast, Iterations: 1, TwoFace: true})
	require.NoError(t, err)
	assert.Empty(t, result.Measurements)
	assert.Equal(t, 0, countOpcode(pipe.Requests(), "9028"))

	for _, a := range result.Attempts {
		require.Len(t, a.Failed(), 1)
		assert.ErrorIs(t, a.Failed()[0].Err, ErrReplyTimeout)
	}
}

func TestMeasureInvalidConfig(t *testing.T) {
	pipe, exec := openPipe(t, scripted(nil))

	result, err := Measure(context.Background(), exec, false, MeasurementConfig{Mode: ModeFast, Iterations: 0})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Empty(t, result.Measurements)
	assert.Empty(t, pipe.Requests())
}
