// internal/discovery/tcp/scanner.go
package tcp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"tachymeter-service/internal/discovery"
	"tachymeter-service/internal/model"
	"tachymeter-service/internal/protocol"
)

// Scanner checks configured serial-over-TCP bridge endpoints
type Scanner struct {
	logger *zap.Logger
	config *Config
}

// Config for TCP scanner
type Config struct {
	ScanTimeout time.Duration    `json:"scan_timeout"`
	Endpoints   []string         `json:"endpoints"` // host:port
	ConnTimeout time.Duration    `json:"connection_timeout"`
	Prober      discovery.Prober `json:"-"`
}

// NewScanner creates a new TCP scanner
func NewScanner(logger *zap.Logger, config *Config) *Scanner {
	if config == nil {
		config = &Config{}
	}
	if config.ScanTimeout <= 0 {
		config.ScanTimeout = 60 * time.Second
	}
	if config.ConnTimeout <= 0 {
		config.ConnTimeout = 3 * time.Second
	}

	return &Scanner{
		logger: logger.With(zap.String("scanner", "tcp")),
		config: config,
	}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "tcp"
}

// IsAvailable reports whether any bridge endpoint is configured
func (s *Scanner) IsAvailable() bool {
	return len(s.config.Endpoints) > 0
}

// Scan dials every endpoint; reachable ones are returned, probed when a
// prober is configured
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredInstrument, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ScanTimeout)
	defer cancel()

	s.logger.Info("Starting TCP bridge scan", zap.Strings("endpoints", s.config.Endpoints))

	discovered := []*discovery.DiscoveredInstrument{}
	for _, endpoint := range s.config.Endpoints {
		if err := ctx.Err(); err != nil {
			return discovered, err
		}

		line, err := parseEndpoint(endpoint)
		if err != nil {
			s.logger.Warn("Skipping invalid endpoint", zap.String("endpoint", endpoint), zap.Error(err))
			continue
		}
		line.DialTimeout = s.config.ConnTimeout

		if !s.reachable(ctx, endpoint) {
			s.logger.Debug("Endpoint not reachable", zap.String("endpoint", endpoint))
			continue
		}

		candidate := &discovery.DiscoveredInstrument{
			ConnectionType: model.ConnectionTypeTCP,
			Address:        endpoint,
			Connection:     line,
			ConnectionInfo: map[string]interface{}{"host": line.Host, "port": line.TCPPort},
			Confidence:     0.3,
		}
		candidate.ApplyProbe(ctx, s.config.Prober)
		discovered = append(discovered, candidate)
	}

	s.logger.Info("TCP scan completed", zap.Int("endpoints_found", len(discovered)))
	return discovered, nil
}

func (s *Scanner) reachable(ctx context.Context, endpoint string) bool {
	dialer := net.Dialer{Timeout: s.config.ConnTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func parseEndpoint(endpoint string) (protocol.ConnectionConfig, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return protocol.ConnectionConfig{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return protocol.ConnectionConfig{}, fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	line := protocol.DefaultConnectionConfig()
	line.Type = model.ConnectionTypeTCP
	line.Host = host
	line.TCPPort = port
	line.KeepAlive = true
	return line, line.Validate()
}
