// internal/driver/leica/total_station_driver.go
package leica

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tachymeter-service/internal/driver/geocom"
	"tachymeter-service/internal/model"
	"tachymeter-service/internal/protocol"
	"tachymeter-service/internal/utils"
	"tachymeter-service/pkg/driver"
)

// TotalStationDriver implements driver.InstrumentDriver for GeoCOM total stations
type TotalStationDriver struct {
	instrument    model.Instrument
	session       *geocom.Session
	logger        *utils.InstrumentLogger
	eventHandler  driver.EventHandler
	status        model.InstrumentStatus
	lastPing      time.Time
	lastError     string
	healthMetrics *driver.HealthMetrics
	info          *driver.InstrumentInfo
	mutex         sync.RWMutex
}

// NewTotalStationDriver creates a disconnected GeoCOM driver
func NewTotalStationDriver(instrument *model.Instrument, settings driver.Settings, logger *zap.Logger) (driver.InstrumentDriver, error) {
	if instrument == nil {
		return nil, fmt.Errorf("instrument is required")
	}
	if settings.Transport == nil {
		return nil, fmt.Errorf("transport factory is required")
	}

	instrumentLogger := utils.NewInstrumentLogger(logger, instrument.Name, string(instrument.Brand), instrument.Model)

	capabilities := instrument.Capabilities
	if len(capabilities) == 0 {
		capabilities = defaultCapabilities()
	}

	d := &TotalStationDriver{
		instrument: *instrument,
		session:    geocom.NewSession(settings.Transport, settings.Timeouts, instrumentLogger.Logger),
		logger:     instrumentLogger,
		status:     model.InstrumentStatusOffline,
		healthMetrics: &driver.HealthMetrics{
			HealthScore: 0,
		},
		info: &driver.InstrumentInfo{
			Brand:          instrument.Brand,
			Model:          instrument.Model,
			Name:           instrument.Name,
			Capabilities:   capabilities,
			ConnectionType: instrument.ConnectionType,
			Manufacturer:   "Leica Geosystems",
		},
	}

	instrumentLogger.Info("GeoCOM driver created",
		zap.String("connection_type", string(instrument.ConnectionType)),
	)
	return d, nil
}

func defaultCapabilities() []model.Capability {
	return []model.Capability{
		model.CapabilityAngles,
		model.CapabilityDistance,
		model.CapabilityReflectorless,
		model.CapabilityMotorized,
		model.CapabilityTwoFace,
	}
}

// Connect opens the line to the instrument and reads its name
func (d *TotalStationDriver) Connect(ctx context.Context, config protocol.ConnectionConfig) error {
	startTime := time.Now()
	d.setStatus(model.InstrumentStatusConnecting, "")

	if err := d.session.Connect(ctx, config); err != nil {
		d.updateHealthMetrics(false, time.Since(startTime))
		d.setStatus(model.InstrumentStatusError, err.Error())
		d.logger.LogConnection("connect", false, err)
		d.notifyError(err)
		return fmt.Errorf("failed to connect: %w", err)
	}

	if name, err := d.session.InstrumentName(ctx); err != nil {
		d.logger.Warn("Instrument did not report its name", zap.Error(err))
	} else if name != "" {
		d.mutex.Lock()
		d.info.Name = name
		d.mutex.Unlock()
	}

	d.mutex.Lock()
	d.lastPing = time.Now()
	d.info.ConnectionType = config.Type
	d.mutex.Unlock()

	d.updateHealthMetrics(true, time.Since(startTime))
	d.setStatus(model.InstrumentStatusOnline, "")
	d.logger.LogConnection("connect", true, nil)

	if handler := d.handler(); handler != nil {
		handler.OnInstrumentConnected(d.instrument.Name)
	}
	return nil
}

// Disconnect closes the line to the instrument
func (d *TotalStationDriver) Disconnect(ctx context.Context) error {
	if err := d.session.Disconnect(); err != nil {
		d.logger.Error("Failed to close transport", zap.Error(err))
	}

	d.setStatus(model.InstrumentStatusOffline, "")
	d.logger.LogConnection("disconnect", true, nil)

	if handler := d.handler(); handler != nil {
		handler.OnInstrumentDisconnected(d.instrument.Name, "manual disconnect")
	}
	return nil
}

// IsConnected returns connection status
func (d *TotalStationDriver) IsConnected() bool {
	return d.session.IsOpen()
}

// GetInstrumentInfo returns instrument information
func (d *TotalStationDriver) GetInstrumentInfo() *driver.InstrumentInfo {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	info := *d.info
	return &info
}

// GetCapabilities returns instrument capabilities
func (d *TotalStationDriver) GetCapabilities() []model.Capability {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.info.Capabilities
}

// GetStatus returns current instrument status
func (d *TotalStationDriver) GetStatus() *driver.InstrumentStatus {
	connected := d.session.IsOpen()
	stats := d.session.Stats()

	d.mutex.RLock()
	defer d.mutex.RUnlock()

	status := d.status
	if !connected && status != model.InstrumentStatusError {
		status = model.InstrumentStatusOffline
	}

	return &driver.InstrumentStatus{
		Status:       status,
		IsReady:      connected && status == model.InstrumentStatusOnline,
		HasError:     status == model.InstrumentStatusError,
		ErrorMessage: d.lastError,
		LastResponse: d.lastPing,
		Transport:    stats,
	}
}

// EnsureMode sets the measurement program cfg needs
func (d *TotalStationDriver) EnsureMode(ctx context.Context, cfg geocom.MeasurementConfig) error {
	return d.track("ensure_mode", func() error {
		return d.session.EnsureMode(ctx, cfg)
	})
}

// Point aims the instrument
func (d *TotalStationDriver) Point(ctx context.Context, req driver.PointRequest) error {
	return d.track("point", func() error {
		return d.session.Point(ctx, req.UseMath, req.Azimuth, req.Zenith, req.Distance, req.Relative)
	})
}

// ToggleFace turns the telescope to the other face
func (d *TotalStationDriver) ToggleFace(ctx context.Context) error {
	return d.track("toggle_face", func() error {
		return d.session.ToggleSightOrientation(ctx)
	})
}

// Measure runs the measurement loop. The instrument reports MEASURING while
// the loop runs.
func (d *TotalStationDriver) Measure(ctx context.Context, useMath bool, cfg geocom.MeasurementConfig) (*geocom.MeasureResult, error) {
	var result *geocom.MeasureResult

	d.setStatus(model.InstrumentStatusMeasuring, "")
	err := d.track("measure", func() error {
		var err error
		result, err = d.session.Measure(ctx, useMath, cfg)
		return err
	})
	if d.session.IsOpen() {
		d.setStatus(model.InstrumentStatusOnline, "")
	} else {
		d.setStatus(model.InstrumentStatusOffline, "")
	}

	if result != nil && !result.Complete() {
		d.logger.Warn("Measurement finished with failed steps",
			zap.Int("measurements", len(result.Measurements)),
			zap.Int("attempts", len(result.Attempts)),
		)
	}
	return result, err
}

// LiveData returns the watch window data, currently always empty
func (d *TotalStationDriver) LiveData(ctx context.Context) map[string]interface{} {
	return d.session.LiveData()
}

// Ping asks the instrument for its name
func (d *TotalStationDriver) Ping(ctx context.Context) error {
	if !d.IsConnected() {
		return fmt.Errorf("instrument not connected")
	}

	err := d.track("ping", func() error {
		_, err := d.session.InstrumentName(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	d.mutex.Lock()
	d.lastPing = time.Now()
	d.mutex.Unlock()
	return nil
}

// GetHealthMetrics returns health metrics
func (d *TotalStationDriver) GetHealthMetrics() *driver.HealthMetrics {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	metrics := *d.healthMetrics
	return &metrics
}

// SetEventHandler sets event handler
func (d *TotalStationDriver) SetEventHandler(handler driver.EventHandler) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.eventHandler = handler
}

// Close cleans up resources
func (d *TotalStationDriver) Close() error {
	return d.Disconnect(context.Background())
}

// Helper methods

// track runs one instrument operation and feeds its outcome into the metrics
func (d *TotalStationDriver) track(operation string, fn func() error) error {
	startTime := time.Now()
	err := fn()
	duration := time.Since(startTime)

	d.updateHealthMetrics(err == nil, duration)
	d.logger.LogOperation(operation, duration, err)

	if err != nil && !errors.Is(err, geocom.ErrNotImplemented) && !errors.Is(err, geocom.ErrInvalidConfig) {
		d.mutex.Lock()
		d.lastError = err.Error()
		d.mutex.Unlock()
		d.notifyError(err)
	}
	return err
}

func (d *TotalStationDriver) handler() driver.EventHandler {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.eventHandler
}

func (d *TotalStationDriver) notifyError(err error) {
	if handler := d.handler(); handler != nil {
		handler.OnInstrumentError(d.instrument.Name, err)
	}
}

// setStatus records a status change and notifies the handler
func (d *TotalStationDriver) setStatus(status model.InstrumentStatus, errMsg string) {
	d.mutex.Lock()
	old := d.status
	d.status = status
	if errMsg != "" {
		d.lastError = errMsg
	}
	handler := d.eventHandler
	d.mutex.Unlock()

	if old != status && handler != nil {
		handler.OnStatusChanged(d.instrument.Name, old, status)
	}
}

// updateHealthMetrics updates instrument health metrics
func (d *TotalStationDriver) updateHealthMetrics(success bool, responseTime time.Duration) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	m := d.healthMetrics
	m.TotalOperations++
	m.ResponseTime = responseTime

	now := time.Now()
	if success {
		m.LastSuccessTime = &now
	} else {
		m.ErrorCount++
		m.LastErrorTime = &now
	}
	m.SuccessRate = float64(m.TotalOperations-m.ErrorCount) / float64(m.TotalOperations)

	m.HealthScore = int(m.SuccessRate * 100)
	if responseTime > 5*time.Second {
		m.HealthScore -= 10
	}
	if m.HealthScore < 0 {
		m.HealthScore = 0
	}
}
