package geocom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tachymeter-service/internal/model"
	"tachymeter-service/internal/protocol"
	"tachymeter-service/internal/simulator"
)

func simulatorFactory(sim *simulator.Instrument, created *[]*protocol.PipeConnection) TransportFactory {
	return func(config protocol.ConnectionConfig) (protocol.Transport, error) {
		pipe := sim.Transport(zap.NewNop())
		if created != nil {
			*created = append(*created, pipe)
		}
		return pipe, nil
	}
}

func simConfig() protocol.ConnectionConfig {
	return protocol.ConnectionConfig{Type: model.ConnectionTypeSimulator, Port: "sim"}
}

func TestSessionConnectNonexistentPort(t *testing.T) {
	session := NewSession(func(config protocol.ConnectionConfig) (protocol.Transport, error) {
		return protocol.CreateTransport(config, zap.NewNop())
	}, testTimeouts(), zap.NewNop())

	cfg := protocol.DefaultConnectionConfig()
	cfg.Port = "/dev/tachymeter-does-not-exist"

	err := session.Connect(context.Background(), cfg)
	assert.Error(t, err)
	assert.False(t, session.IsOpen())
}

func TestSessionOperationsWhenClosed(t *testing.T) {
	session := NewSession(simulatorFactory(simulator.New(), nil), testTimeouts(), zap.NewNop())

	result, err := session.Measure(context.Background(), false, MeasurementConfig{Mode: ModeFast, Iterations: 1})
	assert.ErrorIs(t, err, ErrTransportNotOpen)
	require.NotNil(t, result)
	assert.Empty(t, result.Measurements)

	assert.ErrorIs(t, session.Point(context.Background(), false, 1, 1, 0, false), ErrTransportNotOpen)
	assert.ErrorIs(t, session.ToggleSightOrientation(context.Background()), ErrTransportNotOpen)
	assert.ErrorIs(t, session.EnsureMode(context.Background(), MeasurementConfig{Mode: ModeFast}), ErrTransportNotOpen)
	assert.NoError(t, session.Disconnect())
}

func TestSessionReconnectClosesPrevious(t *testing.T) {
	var created []*protocol.PipeConnection
	session := NewSession(simulatorFactory(simulator.New(), &created), testTimeouts(), zap.NewNop())

	require.NoError(t, session.Connect(context.Background(), simConfig()))
	require.NoError(t, session.Connect(context.Background(), simConfig()))

	require.Len(t, created, 2)
	assert.False(t, created[0].IsOpen())
	assert.True(t, created[1].IsOpen())
	assert.True(t, session.IsOpen())

	require.NoError(t, session.Disconnect())
	assert.False(t, created[1].IsOpen())
	assert.False(t, session.IsOpen())
}

func TestSessionFailedOpenReleasesHandle(t *testing.T) {
	sim := simulator.New()
	session := NewSession(func(config protocol.ConnectionConfig) (protocol.Transport, error) {
		pipe := sim.Transport(zap.NewNop())
		pipe.FailOpen(errors.New("port busy"))
		return pipe, nil
	}, testTimeouts(), zap.NewNop())

	err := session.Connect(context.Background(), simConfig())
	assert.ErrorContains(t, err, "port busy")
	assert.False(t, session.IsOpen())
}

func TestSessionMeasureAndName(t *testing.T) {
	sim := simulator.New(simulator.WithName("TS30"), simulator.WithAngles(0.5, 1.5), simulator.WithDistance(12.0))
	session := NewSession(simulatorFactory(sim, nil), testTimeouts(), zap.NewNop())
	require.NoError(t, session.Connect(context.Background(), simConfig()))
	defer session.Disconnect()

	name, err := session.InstrumentName(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "TS30", name)

	cfg := MeasurementConfig{Mode: ModePrecise, Iterations: 1, WithDistance: true}
	require.NoError(t, session.EnsureMode(context.Background(), cfg))
	assert.Equal(t, 11, sim.State().Program)

	result, err := session.Measure(context.Background(), false, cfg)
	require.NoError(t, err)
	assert.Equal(t, []PolarMeasurement{{Azimuth: 0.5, Zenith: 1.5, SlopeDistance: 12.0}}, result.Measurements)

	assert.Empty(t, session.LiveData())
	assert.Greater(t, session.Stats().BytesWritten, int64(0))
}

func TestSessionDisconnectAbortsInFlightCommand(t *testing.T) {
	sim := simulator.New(simulator.WithSilentOpcodes("2108"))
	timeouts := testTimeouts()
	timeouts.Reply = 5 * time.Second
	session := NewSession(simulatorFactory(sim, nil), timeouts, zap.NewNop())
	require.NoError(t, session.Connect(context.Background(), simConfig()))

	go func() {
		time.Sleep(100 * time.Millisecond)
		session.Disconnect()
	}()

	start := time.Now()
	result, err := session.Measure(context.Background(), false, MeasurementConfig{Mode: ModeFast, Iterations: 2})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Empty(t, result.Measurements)
	require.Len(t, result.Attempts, 2)
	assert.ErrorIs(t, result.Attempts[0].Failed()[0].Err, ErrTransport)
	assert.ErrorIs(t, result.Attempts[1].Failed()[0].Err, ErrTransportNotOpen)
}
