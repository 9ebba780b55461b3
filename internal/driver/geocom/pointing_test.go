package geocom

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAzimuth(t *testing.T) {
	assert.Equal(t, 1.0, NormalizeAzimuth(false, 1.0))
	assert.Equal(t, 2*math.Pi, NormalizeAzimuth(false, 0))
	assert.InDelta(t, 2*math.Pi-0.5, NormalizeAzimuth(false, -0.5), 1e-12)
	assert.InDelta(t, 2*math.Pi-1.0, NormalizeAzimuth(true, 1.0), 1e-12)
	assert.InDelta(t, 0.5, NormalizeAzimuth(true, -0.5), 1e-12)

	// only one turn is added
	assert.InDelta(t, -1.0, NormalizeAzimuth(false, -1.0-2*math.Pi), 1e-12)
}

func TestPointSendsNormalizedAzimuth(t *testing.T) {
	for _, az := range []float64{0, -0.25, -3.0} {
		pipe, exec := openPipe(t, scripted(map[string]string{"9027": "%R1P,0,0:0\r\n"}))

		require.NoError(t, Point(context.Background(), exec, false, az, 1.2, 0, false))

		want, err := Encode("9027", az+2*math.Pi, 1.2, 0, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{want.String()}, pipe.Requests())
		assert.NotContains(t, pipe.Requests()[0], ":-")
	}
}

func TestPointRelativeNotImplemented(t *testing.T) {
	pipe, exec := openPipe(t, scripted(nil))

	err := Point(context.Background(), exec, false, 1.0, 1.0, 0, true)
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.Empty(t, pipe.Requests())
}

func TestPointNonFinite(t *testing.T) {
	tests := []struct {
		name    string
		azimuth float64
		zenith  float64
	}{
		{"nan azimuth", math.NaN(), 1.0},
		{"infinite zenith", 1.0, math.Inf(1)},
		{"negative infinite zenith", 1.0, math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipe, exec := openPipe(t, scripted(map[string]string{"9027": "%R1P,0,0:0\r\n"}))

			err := Point(context.Background(), exec, false, tt.azimuth, tt.zenith, 0, false)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Empty(t, pipe.Requests())
		})
	}
}

func TestPointInstrumentError(t *testing.T) {
	_, exec := openPipe(t, scripted(map[string]string{"9027": "%R1P,0,0:8704\r\n"}))

	err := Point(context.Background(), exec, false, 1.0, 1.0, 0, false)
	var instErr *InstrumentError
	require.ErrorAs(t, err, &instErr)
	assert.Equal(t, 8704, instErr.ReturnCode)
}

func TestToggleSightOrientation(t *testing.T) {
	pipe, exec := openPipe(t, scripted(map[string]string{"9028": "%R1P,0,0:0\r\n"}))

	require.NoError(t, ToggleSightOrientation(context.Background(), exec))
	assert.Equal(t, []string{"%R1Q,9028:0,0,0\r\n"}, pipe.Requests())
}

func TestPointMeasureRoundTrip(t *testing.T) {
	for _, az := range []float64{1.0, 3.5, 6.0, -0.5, 0} {
		_, exec := openSimulator(t)

		require.NoError(t, Point(context.Background(), exec, true, az, 1.3, 0, false))
		result, err := Measure(context.Background(), exec, true, MeasurementConfig{Mode: ModeFast, Iterations: 1})
		require.NoError(t, err)
		require.Len(t, result.Measurements, 1)

		assert.InDelta(t, 0, angleDiff(az, result.Measurements[0].Azimuth), 1e-9, "azimuth %v", az)
		assert.InDelta(t, 1.3, result.Measurements[0].Zenith, 1e-12)
	}
}
