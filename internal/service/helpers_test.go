package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tachymeter-service/internal/config"
	internalDriver "tachymeter-service/internal/driver"
	"tachymeter-service/internal/driver/geocom"
	"tachymeter-service/internal/model"
	"tachymeter-service/internal/repository"
	"tachymeter-service/internal/simulator"
)

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.InstrumentEvent
}

func (p *recordingPublisher) Publish(event *model.InstrumentEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) count(eventType model.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	sim          *simulator.Instrument
	config       *config.Config
	publisher    *recordingPublisher
	repo         repository.MeasurementRepository
	instruments  *InstrumentService
	measurements *MeasurementService
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Instrument.Name = "test-station"
	cfg.Connection.Type = model.ConnectionTypeSimulator
	cfg.GeoCOM = geocom.Timeouts{
		Write:      200 * time.Millisecond,
		Reply:      300 * time.Millisecond,
		Quiescence: 30 * time.Millisecond,
		Receive:    2 * time.Second,
	}
	return cfg
}

func newFixture(t *testing.T, opts ...simulator.Option) *fixture {
	t.Helper()
	logger := zap.NewNop()

	f := &fixture{
		sim:       simulator.New(opts...),
		config:    testConfig(t),
		publisher: &recordingPublisher{},
		repo:      repository.NewMemoryRepository(logger),
	}

	registry := internalDriver.NewRegistry(logger)
	internalDriver.RegisterDefaultDrivers(registry, logger)

	transports := NewTransportFactory(f.sim, logger)
	f.instruments = NewInstrumentService(registry, transports, f.publisher, f.config, logger)
	f.measurements = NewMeasurementService(f.instruments, f.repo, f.publisher, f.config, logger)

	t.Cleanup(func() { f.instruments.Close() })
	return f
}
