// internal/service/discovery_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tachymeter-service/internal/config"
	"tachymeter-service/internal/discovery"
	"tachymeter-service/internal/discovery/serial"
	"tachymeter-service/internal/discovery/tcp"
	internalDriver "tachymeter-service/internal/driver"
	"tachymeter-service/internal/driver/geocom"
	"tachymeter-service/internal/protocol"
	"tachymeter-service/internal/utils"
)

// DiscoveryService finds lines a GeoCOM instrument may be attached to
type DiscoveryService struct {
	scannerManager *discovery.ScannerManager
	registry       *internalDriver.Registry
	transports     geocom.TransportFactory
	config         *config.Config
	logger         *utils.ServiceLogger
}

// NewDiscoveryService creates a new discovery service
func NewDiscoveryService(
	registry *internalDriver.Registry,
	transports geocom.TransportFactory,
	config *config.Config,
	logger *zap.Logger,
) *DiscoveryService {
	ds := &DiscoveryService{
		scannerManager: discovery.NewScannerManager(logger),
		registry:       registry,
		transports:     transports,
		config:         config,
		logger:         utils.NewServiceLogger(logger, "discovery-service"),
	}

	ds.initializeScanners()
	return ds
}

// initializeScanners registers all available scanners
func (ds *DiscoveryService) initializeScanners() {
	ds.scannerManager.RegisterScanner(serial.NewScanner(ds.logger.Logger, &serial.Config{
		ScanTimeout:  ds.config.Discovery.ScanTimeout,
		BaudRate:     ds.config.Connection.BaudRate,
		PortPatterns: ds.config.Discovery.PortPatterns,
		Prober:       ds.probe,
	}))

	ds.scannerManager.RegisterScanner(tcp.NewScanner(ds.logger.Logger, &tcp.Config{
		ScanTimeout: ds.config.Discovery.ScanTimeout,
		Endpoints:   ds.config.Discovery.TCPEndpoints,
		ConnTimeout: ds.config.Discovery.ProbeTimeout,
		Prober:      ds.probe,
	}))

	ds.logger.Info("Discovery scanners initialized",
		zap.Strings("available_scanners", ds.scannerManager.GetAvailableScanners()),
	)
}

// ScanInstruments scans for candidate lines and optionally probes them
func (ds *DiscoveryService) ScanInstruments(ctx context.Context, req *ScanRequest) ([]*discovery.DiscoveredInstrument, error) {
	if req == nil {
		req = &ScanRequest{ScanType: "all"}
	}
	if req.ScanType == "" {
		req.ScanType = "all"
	}
	ds.logger.Info("Starting instrument scan", zap.String("type", req.ScanType))

	scanCtx, cancel := context.WithTimeout(ctx, ds.config.Discovery.ScanTimeout)
	defer cancel()

	var found []*discovery.DiscoveredInstrument
	var err error

	switch req.ScanType {
	case "all":
		found, err = ds.scannerManager.ScanAll(scanCtx)
	case "serial", "tcp":
		found, err = ds.scannerManager.ScanByType(scanCtx, req.ScanType)
	default:
		return nil, fmt.Errorf("%w: unsupported scan type: %s", ErrInvalidRequest, req.ScanType)
	}
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	if req.RespondingOnly {
		responding := found[:0]
		for _, candidate := range found {
			if candidate.Responded {
				responding = append(responding, candidate)
			}
		}
		found = responding
	}

	ds.logger.Info("Instrument scan completed",
		zap.Int("instruments_found", len(found)),
		zap.String("scan_type", req.ScanType),
	)
	return found, nil
}

// GetAvailableScanners returns the scanner types that can run on this host
func (ds *DiscoveryService) GetAvailableScanners() []string {
	return ds.scannerManager.GetAvailableScanners()
}

// GetSupportedInstruments lists registered driver models per brand
func (ds *DiscoveryService) GetSupportedInstruments() *SupportedInstrumentsResponse {
	instruments := make(map[string][]string)
	for _, key := range ds.registry.ListDrivers() {
		brand := string(key.Brand)
		instruments[brand] = append(instruments[brand], key.Model)
	}

	return &SupportedInstrumentsResponse{
		TotalBrands: len(instruments),
		Instruments: instruments,
	}
}

// probe opens a throwaway session on line and asks for the instrument name
func (ds *DiscoveryService) probe(ctx context.Context, line protocol.ConnectionConfig) (string, error) {
	timeout := ds.config.Discovery.ProbeTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	timeouts := ds.config.GeoCOM
	timeouts.Reply = timeout
	timeouts.Write = timeout
	timeouts.Receive = 2 * timeout
	if timeouts.Quiescence <= 0 || timeouts.Quiescence > timeout {
		timeouts.Quiescence = timeout / 4
	}

	session := geocom.NewSession(ds.transports, timeouts, ds.logger.Logger)
	if err := session.Connect(ctx, line); err != nil {
		return "", err
	}
	defer session.Disconnect()

	return session.InstrumentName(ctx)
}

// DTOs for Discovery Service

// ScanRequest represents an instrument scan request
type ScanRequest struct {
	ScanType       string `json:"scan_type"` // all, serial, tcp
	RespondingOnly bool   `json:"responding_only"`
}

// SupportedInstrumentsResponse represents supported instruments response
type SupportedInstrumentsResponse struct {
	TotalBrands int                 `json:"total_brands"`
	Instruments map[string][]string `json:"instruments"`
}
