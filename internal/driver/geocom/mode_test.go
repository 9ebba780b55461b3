package geocom

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tachymeter-service/internal/simulator"
)

func TestEnsureModeAlreadyActive(t *testing.T) {
	pipe, exec := openPipe(t, scripted(map[string]string{
		"17018": "%R1P,0,0:0,11\r\n",
	}))

	switched, err := EnsureMode(context.Background(), exec, MeasurementConfig{Mode: ModePrecise, Iterations: 1})
	require.NoError(t, err)
	assert.False(t, switched)
	assert.Equal(t, []string{"%R1Q,17018:\r\n"}, pipe.Requests())
}

func TestEnsureModeSwitches(t *testing.T) {
	tests := []struct {
		name    string
		current string
		cfg     MeasurementConfig
		want    string
	}{
		{"precise to fast", "%R1P,0,0:0,11\r\n", MeasurementConfig{Mode: ModeFast}, "%R1Q,17019:1\r\n"},
		{"fast to precise", "%R1P,0,0:0,1\r\n", MeasurementConfig{Mode: ModePrecise}, "%R1Q,17019:11\r\n"},
		{"ir to reflectorless", "%R1P,0,0:0,1\r\n", MeasurementConfig{Reflectorless: true}, "%R1Q,17019:3\r\n"},
		{"reflectorless to fast", "%R1P,0,0:0,3\r\n", MeasurementConfig{Mode: ModeFast}, "%R1Q,17019:1\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipe, exec := openPipe(t, scripted(map[string]string{
				"17018": tt.current,
				"17019": "%R1P,0,0:0\r\n",
			}))

			switched, err := EnsureMode(context.Background(), exec, tt.cfg)
			require.NoError(t, err)
			assert.True(t, switched)
			assert.Equal(t, []string{"%R1Q,17018:\r\n", tt.want}, pipe.Requests())
		})
	}
}

func TestEnsureModeUnknownMode(t *testing.T) {
	pipe, exec := openPipe(t, scripted(map[string]string{
		"17018": "%R1P,0,0:0,11\r\n",
		"17019": "%R1P,0,0:0\r\n",
	}))

	switched, err := EnsureMode(context.Background(), exec, MeasurementConfig{Mode: "bogus", Iterations: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.False(t, switched)
	assert.Empty(t, pipe.Requests())
}

func TestEnsureModeReflectorlessIgnoresMode(t *testing.T) {
	pipe, exec := openPipe(t, scripted(map[string]string{
		"17018": "%R1P,0,0:0,3\r\n",
	}))

	switched, err := EnsureMode(context.Background(), exec, MeasurementConfig{Mode: "bogus", Reflectorless: true})
	require.NoError(t, err)
	assert.False(t, switched)
	assert.Equal(t, []string{"%R1Q,17018:\r\n"}, pipe.Requests())
}

func TestEnsureModeSwitchReplyNotInspected(t *testing.T) {
	_, exec := openPipe(t, scripted(map[string]string{
		"17018": "%R1P,0,0:0,1\r\n",
		"17019": "%R1P,0,0:26\r\n",
	}))

	switched, err := EnsureMode(context.Background(), exec, MeasurementConfig{Reflectorless: true})
	require.NoError(t, err)
	assert.True(t, switched)
}

func TestEnsureModeIdempotent(t *testing.T) {
	sim, exec := openSimulator(t, simulator.WithProgram(1))
	cfg := MeasurementConfig{Mode: ModePrecise, Iterations: 1}

	_, err := EnsureMode(context.Background(), exec, cfg)
	require.NoError(t, err)
	switched, err := EnsureMode(context.Background(), exec, cfg)
	require.NoError(t, err)

	assert.False(t, switched)
	assert.Equal(t, 1, sim.Count("17019"))
	assert.Equal(t, 2, sim.Count("17018"))
	assert.Equal(t, 11, sim.State().Program)
}

func TestEnsureModeQueryFailed(t *testing.T) {
	pipe, exec := openPipe(t, scripted(nil))

	_, err := EnsureMode(context.Background(), exec, MeasurementConfig{Mode: ModeFast})
	assert.ErrorIs(t, err, ErrModeQueryFailed)
	assert.ErrorIs(t, err, ErrReplyTimeout)
	assert.Len(t, pipe.Requests(), 1)
}

func TestEnsureModeSwitchFailed(t *testing.T) {
	_, exec := openPipe(t, scripted(map[string]string{
		"17018": "%R1P,0,0:0,1\r\n",
	}))

	_, err := EnsureMode(context.Background(), exec, MeasurementConfig{Mode: ModePrecise})
	assert.ErrorIs(t, err, ErrModeSwitchFailed)
}

func TestTriggerDistance(t *testing.T) {
	pipe, exec := openPipe(t, scripted(map[string]string{
		"2008": "%R1P,0,0:0\r\n",
	}))

	require.NoError(t, TriggerDistance(context.Background(), exec, false))
	require.NoError(t, TriggerDistance(context.Background(), exec, true))
	assert.Equal(t, []string{"%R1Q,2008:1,1\r\n", "%R1Q,2008:6,1\r\n"}, pipe.Requests())
}

func TestTriggerDistanceFailures(t *testing.T) {
	_, exec := openPipe(t, scripted(map[string]string{
		"2008": "%R1P,0,0:1285\r\n",
	}))
	assert.ErrorIs(t, TriggerDistance(context.Background(), exec, false), ErrEDMFailed)

	_, silent := openPipe(t, scripted(nil))
	err := TriggerDistance(context.Background(), silent, false)
	assert.ErrorIs(t, err, ErrEDMFailed)
	assert.ErrorIs(t, err, ErrReplyTimeout)
}
