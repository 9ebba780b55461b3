// internal/service/instrument_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tachymeter-service/internal/config"
	internalDriver "tachymeter-service/internal/driver"
	"tachymeter-service/internal/driver/geocom"
	"tachymeter-service/internal/model"
	"tachymeter-service/internal/protocol"
	"tachymeter-service/internal/utils"
	"tachymeter-service/pkg/driver"
)

// ErrInvalidRequest marks caller mistakes that never reached the instrument
var ErrInvalidRequest = errors.New("invalid request")

// InstrumentService owns the single configured instrument and its driver
type InstrumentService struct {
	registry    *internalDriver.Registry
	transports  geocom.TransportFactory
	publisher   EventPublisher
	config      *config.Config
	logger      *utils.ServiceLogger
	auditLogger *utils.AuditLogger

	mu         sync.RWMutex
	instrument model.Instrument
	driver     driver.InstrumentDriver
}

// NewInstrumentService creates a new instrument service instance
func NewInstrumentService(
	registry *internalDriver.Registry,
	transports geocom.TransportFactory,
	publisher EventPublisher,
	config *config.Config,
	logger *zap.Logger,
) *InstrumentService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &InstrumentService{
		registry:    registry,
		transports:  transports,
		publisher:   publisher,
		config:      config,
		logger:      utils.NewServiceLogger(logger, "instrument-service"),
		auditLogger: utils.NewAuditLogger(logger),
		instrument:  *config.GetInstrument(),
	}
}

// Connect opens the line to the instrument. A nil request uses the
// configured connection.
func (s *InstrumentService) Connect(ctx context.Context, req *ConnectRequest, clientIP string) (*InstrumentState, error) {
	line := s.config.Connection
	if req != nil && req.Connection != nil {
		line = withLineDefaults(*req.Connection)
	}
	line.Type = model.ConnectionType(strings.ToUpper(string(line.Type)))
	if err := line.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	d, err := s.ensureDriver(line.Type)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Connecting instrument",
		zap.String("instrument", s.instrument.Name),
		zap.String("connection_type", string(line.Type)),
		zap.String("address", line.Address()),
	)

	err = d.Connect(ctx, line)
	s.auditLogger.LogConnectionChange(s.instrument.Name, "connect", line.Address(), clientIP, err == nil)
	if err != nil {
		s.setInstrumentStatus(model.InstrumentStatusError)
		return nil, err
	}

	now := time.Now()
	s.mu.Lock()
	s.instrument.ConnectionType = line.Type
	s.instrument.Port = line.Address()
	s.instrument.ConnectedAt = &now
	s.instrument.LastPing = &now
	s.instrument.Status = model.InstrumentStatusOnline
	s.mu.Unlock()

	return s.Status(), nil
}

// Disconnect closes the line. Commands in flight fail with a transport error.
func (s *InstrumentService) Disconnect(ctx context.Context, clientIP string) error {
	s.mu.RLock()
	d := s.driver
	address := s.instrument.Port
	s.mu.RUnlock()

	if d == nil {
		return nil
	}

	err := d.Disconnect(ctx)
	s.auditLogger.LogConnectionChange(s.instrument.Name, "disconnect", address, clientIP, err == nil)

	s.mu.Lock()
	s.instrument.Status = model.InstrumentStatusOffline
	s.instrument.ConnectedAt = nil
	s.mu.Unlock()
	return err
}

// Status returns a snapshot of the instrument and its driver
func (s *InstrumentService) Status() *InstrumentState {
	s.mu.RLock()
	d := s.driver
	instrument := s.instrument
	s.mu.RUnlock()

	state := &InstrumentState{Instrument: instrument}
	if d != nil {
		state.Info = d.GetInstrumentInfo()
		state.Status = d.GetStatus()
		state.Health = d.GetHealthMetrics()
		state.Instrument.Status = state.Status.Status
		state.Connected = d.IsConnected()
	}
	return state
}

// Instrument returns the configured instrument description
func (s *InstrumentService) Instrument() model.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instrument
}

// Driver returns the driver of a connected instrument
func (s *InstrumentService) Driver() (driver.InstrumentDriver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.driver == nil {
		return nil, geocom.ErrTransportNotOpen
	}
	return s.driver, nil
}

// EnsureMode sets the measurement program cfg needs. A nil cfg uses the
// configured measurement settings.
func (s *InstrumentService) EnsureMode(ctx context.Context, cfg *geocom.MeasurementConfig) error {
	mc := s.config.Measurement
	if cfg != nil {
		mc = *cfg
	}
	if err := mc.Validate(); err != nil {
		return err
	}

	d, err := s.Driver()
	if err != nil {
		return err
	}
	if err := d.EnsureMode(ctx, mc); err != nil {
		return err
	}

	s.auditLogger.LogModeChange(s.instrument.Name, mc)
	publish(s.publisher, model.EventModeEnsured, s.instrument.Name, nil, model.JSONObject{
		"reflectorless": mc.Reflectorless,
		"mode":          string(mc.Mode),
	})
	return nil
}

// Point aims the instrument at the requested direction
func (s *InstrumentService) Point(ctx context.Context, req *driver.PointRequest) error {
	if req == nil {
		return fmt.Errorf("%w: point request is required", ErrInvalidRequest)
	}
	d, err := s.Driver()
	if err != nil {
		return err
	}
	if err := d.Point(ctx, *req); err != nil {
		return err
	}

	publish(s.publisher, model.EventPointed, s.instrument.Name, nil, model.JSONObject{
		"azimuth":  req.Azimuth,
		"zenith":   req.Zenith,
		"distance": req.Distance,
		"relative": req.Relative,
		"use_math": req.UseMath,
	})
	return nil
}

// ToggleFace turns the telescope to the other face
func (s *InstrumentService) ToggleFace(ctx context.Context) error {
	d, err := s.Driver()
	if err != nil {
		return err
	}
	if err := d.ToggleFace(ctx); err != nil {
		return err
	}

	publish(s.publisher, model.EventFaceToggled, s.instrument.Name, nil, model.JSONObject{})
	return nil
}

// LiveData returns the instrument watch window data
func (s *InstrumentService) LiveData(ctx context.Context) (map[string]interface{}, error) {
	d, err := s.Driver()
	if err != nil {
		return nil, err
	}
	return d.LiveData(ctx), nil
}

// CheckHealth pings a connected instrument and publishes its metrics
func (s *InstrumentService) CheckHealth(ctx context.Context) (*driver.HealthMetrics, error) {
	d, err := s.Driver()
	if err != nil {
		return nil, err
	}
	if !d.IsConnected() {
		return d.GetHealthMetrics(), nil
	}

	pingErr := d.Ping(ctx)
	if pingErr == nil {
		now := time.Now()
		s.mu.Lock()
		s.instrument.LastPing = &now
		s.mu.Unlock()
	}

	metrics := d.GetHealthMetrics()
	instrumentLogger := utils.NewInstrumentLogger(s.logger.Logger, s.instrument.Name, string(s.instrument.Brand), s.instrument.Model)
	if pingErr != nil {
		instrumentLogger.Warn("Instrument ping failed", zap.Error(pingErr))
	} else {
		instrumentLogger.LogHealth(metrics.HealthScore, metrics.ResponseTime, metrics.SuccessRate)
	}

	publish(s.publisher, model.EventHealthUpdate, s.instrument.Name, nil, model.JSONObject{
		"health_score":     metrics.HealthScore,
		"success_rate":     metrics.SuccessRate,
		"error_count":      metrics.ErrorCount,
		"total_operations": metrics.TotalOperations,
		"response_time_ms": metrics.ResponseTime.Milliseconds(),
	})
	return metrics, pingErr
}

// StartHealthMonitor pings the instrument every interval until ctx ends.
// Pings never interrupt a running measurement; they queue behind it.
func (s *InstrumentService) StartHealthMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if d, err := s.Driver(); err != nil || !d.IsConnected() {
					continue
				}
				checkCtx, cancel := context.WithTimeout(ctx, s.config.GeoCOM.Reply+s.config.GeoCOM.Write)
				_, _ = s.CheckHealth(checkCtx)
				cancel()
			}
		}
	}()
}

// Close releases the driver
func (s *InstrumentService) Close() error {
	s.mu.Lock()
	d := s.driver
	s.driver = nil
	s.mu.Unlock()

	if d == nil {
		return nil
	}
	return d.Close()
}

// Helper methods

// ensureDriver creates the driver on first use
func (s *InstrumentService) ensureDriver(connectionType model.ConnectionType) (driver.InstrumentDriver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.driver != nil {
		return s.driver, nil
	}

	instrument := s.instrument
	instrument.ConnectionType = connectionType
	d, err := s.registry.CreateDriver(&instrument, driver.Settings{
		Timeouts:  s.config.GeoCOM,
		Transport: s.transports,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	d.SetEventHandler(newDriverEventHandler(s.publisher, s.logger.Logger))
	s.driver = d
	return d, nil
}

// withLineDefaults fills serial settings a connect override left out
func withLineDefaults(line protocol.ConnectionConfig) protocol.ConnectionConfig {
	defaults := protocol.DefaultConnectionConfig()
	if line.Type == "" {
		line.Type = defaults.Type
	}
	if line.BaudRate == 0 {
		line.BaudRate = defaults.BaudRate
	}
	if line.DataBits == 0 {
		line.DataBits = defaults.DataBits
	}
	if line.StopBits == 0 {
		line.StopBits = defaults.StopBits
	}
	if line.DialTimeout == 0 {
		line.DialTimeout = defaults.DialTimeout
	}
	if line.PollInterval == 0 {
		line.PollInterval = defaults.PollInterval
	}
	return line
}

func (s *InstrumentService) setInstrumentStatus(status model.InstrumentStatus) {
	s.mu.Lock()
	s.instrument.Status = status
	s.mu.Unlock()
}

// Data Transfer Objects

// ConnectRequest represents an instrument connect request
type ConnectRequest struct {
	Connection *protocol.ConnectionConfig `json:"connection,omitempty"`
}

// InstrumentState represents the instrument together with its driver state
type InstrumentState struct {
	Instrument model.Instrument         `json:"instrument"`
	Connected  bool                     `json:"connected"`
	Info       *driver.InstrumentInfo   `json:"info,omitempty"`
	Status     *driver.InstrumentStatus `json:"status,omitempty"`
	Health     *driver.HealthMetrics    `json:"health,omitempty"`
}
