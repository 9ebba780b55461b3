package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tachymeter-service/internal/driver/geocom"
	"tachymeter-service/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "tachymeter-service", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8085", cfg.GetServerAddr())
	assert.False(t, cfg.Database.Enabled)

	assert.Equal(t, model.ConnectionTypeSerial, cfg.Connection.Type)
	assert.Equal(t, 19200, cfg.Connection.BaudRate)
	assert.Equal(t, 50*time.Millisecond, cfg.Connection.PollInterval)

	assert.Equal(t, geocom.DefaultTimeouts(), cfg.GeoCOM)
	assert.Equal(t, geocom.ModePrecise, cfg.Measurement.Mode)
	assert.Equal(t, 1, cfg.Measurement.Iterations)
	assert.True(t, cfg.Measurement.WithDistance)
	assert.True(t, cfg.IsDebugEnabled())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
app:
  environment: production
instrument:
  name: north-pillar
  brand: leica
  model: TM30
connection:
  type: simulator
geocom:
  reply: 3s
  quiescence: 250ms
measurement:
  mode: fast
  iterations: 3
  two_face: true
  policy: abort_on_failure
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDebugEnabled())
	assert.Equal(t, model.ConnectionTypeSimulator, cfg.Connection.Type)
	assert.Equal(t, 3*time.Second, cfg.GeoCOM.Reply)
	assert.Equal(t, 250*time.Millisecond, cfg.GeoCOM.Quiescence)
	assert.Equal(t, 10*time.Second, cfg.GeoCOM.Write)
	assert.Equal(t, geocom.MeasurementConfig{
		Mode:         geocom.ModeFast,
		Iterations:   3,
		TwoFace:      true,
		WithDistance: true,
		Policy:       geocom.AbortOnFailure,
	}, cfg.Measurement)

	instrument := cfg.GetInstrument()
	assert.Equal(t, "north-pillar", instrument.Name)
	assert.Equal(t, model.BrandLeica, instrument.Brand)
	assert.Equal(t, "TM30", instrument.Model)
	assert.Equal(t, model.InstrumentStatusOffline, instrument.Status)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TACHY_SERVER_PORT", "9999")
	t.Setenv("TACHY_CONNECTION_PORT", "COM7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "COM7", cfg.Connection.Port)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"log level", "logging:\n  level: loud\n"},
		{"environment", "app:\n  environment: moon\n"},
		{"connection type", "connection:\n  type: carrier_pigeon\n"},
		{"iterations", "measurement:\n  iterations: 0\n"},
		{"reply timeout", "geocom:\n  reply: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", DBName: "tachy", SSLMode: "disable",
	}}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=tachy sslmode=disable", cfg.GetDatabaseDSN())
}
