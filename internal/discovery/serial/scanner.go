// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"tachymeter-service/internal/discovery"
	"tachymeter-service/internal/model"
	"tachymeter-service/internal/protocol"
)

// Scanner implements serial port instrument scanning
type Scanner struct {
	logger    *zap.Logger
	config    *Config
	adapters  *AdapterDatabase
	listPorts func() ([]*enumerator.PortDetails, error)
}

// Config for serial scanner
type Config struct {
	ScanTimeout  time.Duration    `json:"scan_timeout"`
	BaudRate     int              `json:"baud_rate"`
	PortPatterns []string         `json:"port_patterns"`
	Prober       discovery.Prober `json:"-"`
}

// NewScanner creates a new serial scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{}
	}
	if config.ScanTimeout <= 0 {
		config.ScanTimeout = 30 * time.Second
	}
	if config.BaudRate <= 0 {
		config.BaudRate = protocol.DefaultConnectionConfig().BaudRate
	}
	if len(config.PortPatterns) == 0 {
		config.PortPatterns = defaultPortPatterns()
	}

	return &Scanner{
		logger:    logger.With(zap.String("scanner", "serial")),
		config:    config,
		adapters:  NewAdapterDatabase(),
		listPorts: enumerator.GetDetailedPortsList,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "serial"
}

// IsAvailable checks if serial scanning is available
func (s *Scanner) IsAvailable() bool {
	return true
}

// Scan lists serial ports and, when a prober is configured, asks each one
// for an instrument name
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredInstrument, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ScanTimeout)
	defer cancel()

	s.logger.Info("Starting serial port scan")

	ports, err := s.listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	discovered := []*discovery.DiscoveredInstrument{}
	for _, port := range ports {
		if !s.matchesPattern(port.Name) {
			continue
		}

		select {
		case <-ctx.Done():
			return discovered, ctx.Err()
		default:
		}

		candidate := s.describe(port)
		candidate.ApplyProbe(ctx, s.config.Prober)
		discovered = append(discovered, candidate)
	}

	s.logger.Info("Serial scan completed", zap.Int("ports_found", len(discovered)))
	return discovered, nil
}

// describe turns enumerator details into a candidate line
func (s *Scanner) describe(port *enumerator.PortDetails) *discovery.DiscoveredInstrument {
	line := protocol.DefaultConnectionConfig()
	line.Port = port.Name
	line.BaudRate = s.config.BaudRate

	info := map[string]interface{}{
		"is_usb": port.IsUSB,
	}
	confidence := 0.1

	if port.IsUSB {
		info["vid"] = port.VID
		info["pid"] = port.PID
		if port.Product != "" {
			info["product"] = port.Product
		}
		confidence = 0.2
		if adapter := s.adapters.Lookup(port.VID); adapter != nil {
			info["adapter"] = adapter.Chip
			info["vendor"] = adapter.Vendor
			confidence = adapter.Confidence
		}
	}

	return &discovery.DiscoveredInstrument{
		ConnectionType: model.ConnectionTypeSerial,
		Address:        port.Name,
		Connection:     line,
		ConnectionInfo: info,
		Confidence:     confidence,
		SerialNumber:   port.SerialNumber,
	}
}

func (s *Scanner) matchesPattern(name string) bool {
	for _, pattern := range s.config.PortPatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func defaultPortPatterns() []string {
	switch runtime.GOOS {
	case "windows":
		return []string{"COM*"}
	case "darwin":
		return []string{"/dev/cu.*", "/dev/tty.usbserial*"}
	default:
		return []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/ttyS*", "/dev/rfcomm*"}
	}
}
