// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"tachymeter-service/internal/model"
	"tachymeter-service/internal/protocol"
)

// InstrumentScanner finds candidate lines an instrument may be attached to
type InstrumentScanner interface {
	Scan(ctx context.Context) ([]*DiscoveredInstrument, error)
	GetScannerType() string
	IsAvailable() bool
}

// Prober asks whatever answers on a line for its instrument name. A nil
// error means a GeoCOM instrument replied.
type Prober func(ctx context.Context, config protocol.ConnectionConfig) (string, error)

// DiscoveredInstrument represents a candidate line, probed or not
type DiscoveredInstrument struct {
	ConnectionType model.ConnectionType      `json:"connection_type"`
	Address        string                    `json:"address"`
	Connection     protocol.ConnectionConfig `json:"connection"`
	ConnectionInfo map[string]interface{}    `json:"connection_info,omitempty"`
	Brand          model.InstrumentBrand     `json:"brand,omitempty"`
	Name           string                    `json:"name,omitempty"`
	Responded      bool                      `json:"responded"`
	Confidence     float64                   `json:"confidence"` // 0.0-1.0
	SerialNumber   string                    `json:"serial_number,omitempty"`
	ProbeError     string                    `json:"probe_error,omitempty"`
}

// ApplyProbe runs prober against the candidate and records the outcome
func (d *DiscoveredInstrument) ApplyProbe(ctx context.Context, prober Prober) {
	if prober == nil {
		return
	}

	name, err := prober(ctx, d.Connection)
	if err != nil {
		d.ProbeError = err.Error()
		return
	}

	d.Responded = true
	d.Name = name
	d.Confidence = 1.0
	if d.Brand == "" {
		d.Brand = model.BrandGeneric
	}
}

// ScannerManager manages all instrument scanners
type ScannerManager struct {
	scanners map[string]InstrumentScanner
	logger   *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	return &ScannerManager{
		scanners: make(map[string]InstrumentScanner),
		logger:   logger,
	}
}

// RegisterScanner registers an instrument scanner
func (sm *ScannerManager) RegisterScanner(scanner InstrumentScanner) {
	scannerType := scanner.GetScannerType()
	sm.scanners[scannerType] = scanner
	sm.logger.Info("Scanner registered", zap.String("type", scannerType))
}

// ScanAll scans all registered scanner types. A failing scanner is logged
// and skipped.
func (sm *ScannerManager) ScanAll(ctx context.Context) ([]*DiscoveredInstrument, error) {
	var all []*DiscoveredInstrument

	for _, scannerType := range sm.scannerTypes() {
		scanner := sm.scanners[scannerType]
		if !scanner.IsAvailable() {
			sm.logger.Debug("Scanner not available, skipping", zap.String("type", scannerType))
			continue
		}

		found, err := scanner.Scan(ctx)
		if err != nil {
			sm.logger.Error("Scanner failed", zap.String("type", scannerType), zap.Error(err))
			continue
		}

		all = append(all, found...)
		sm.logger.Info("Scanner completed",
			zap.String("type", scannerType),
			zap.Int("instruments_found", len(found)),
		)
	}

	return all, nil
}

// ScanByType scans specific scanner type
func (sm *ScannerManager) ScanByType(ctx context.Context, scannerType string) ([]*DiscoveredInstrument, error) {
	scanner, exists := sm.scanners[scannerType]
	if !exists {
		return nil, fmt.Errorf("scanner type not found: %s", scannerType)
	}

	if !scanner.IsAvailable() {
		return nil, fmt.Errorf("scanner not available: %s", scannerType)
	}

	return scanner.Scan(ctx)
}

// GetAvailableScanners returns list of available scanner types
func (sm *ScannerManager) GetAvailableScanners() []string {
	var available []string
	for _, scannerType := range sm.scannerTypes() {
		if sm.scanners[scannerType].IsAvailable() {
			available = append(available, scannerType)
		}
	}
	return available
}

func (sm *ScannerManager) scannerTypes() []string {
	types := make([]string, 0, len(sm.scanners))
	for t := range sm.scanners {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
