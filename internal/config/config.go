// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tachymeter-service/internal/driver/geocom"
	"tachymeter-service/internal/model"
	"tachymeter-service/internal/protocol"
)

// Config represents the application configuration
type Config struct {
	App         AppConfig                 `mapstructure:"app"`
	Server      ServerConfig              `mapstructure:"server"`
	Security    SecurityConfig            `mapstructure:"security"`
	Logging     LoggingConfig             `mapstructure:"logging"`
	Database    DatabaseConfig            `mapstructure:"database"`
	Instrument  InstrumentConfig          `mapstructure:"instrument"`
	Connection  protocol.ConnectionConfig `mapstructure:"connection"`
	GeoCOM      geocom.Timeouts           `mapstructure:"geocom"`
	Measurement geocom.MeasurementConfig  `mapstructure:"measurement"`
	Monitoring  MonitoringConfig          `mapstructure:"monitoring"`
	Discovery   DiscoveryConfig           `mapstructure:"discovery"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLS          TLSConfig     `mapstructure:"tls"`
}

// TLSConfig represents TLS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DatabaseConfig represents database configuration. When disabled, runs are
// kept in memory.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxLifetime     time.Duration `mapstructure:"max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
	RetentionPeriod time.Duration `mapstructure:"retention_period"`
}

// InstrumentConfig describes the instrument attached to the service
type InstrumentConfig struct {
	Name        string `mapstructure:"name"`
	Brand       string `mapstructure:"brand"`
	Model       string `mapstructure:"model"`
	AutoConnect bool   `mapstructure:"auto_connect"`
	UseMath     bool   `mapstructure:"use_math"`
}

// MonitoringConfig represents background job configuration
type MonitoringConfig struct {
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	CleanupInterval     time.Duration `mapstructure:"cleanup_interval"`
	OperationTimeout    time.Duration `mapstructure:"operation_timeout"`
}

// DiscoveryConfig represents instrument discovery configuration
type DiscoveryConfig struct {
	ScanTimeout  time.Duration `mapstructure:"scan_timeout"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	PortPatterns []string      `mapstructure:"port_patterns"`
	TCPEndpoints []string      `mapstructure:"tcp_endpoints"`
}

// Load loads configuration from file and environment variables. An empty
// path searches for config.yaml in the working directory and ./configs; a
// missing file is not an error in that case.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// Environment variable support
	v.SetEnvPrefix("TACHY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "tachymeter-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8085")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.tls.enabled", false)

	// Security defaults
	v.SetDefault("security.allowed_origins", []string{"*"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "tachymeter")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "./migrations")
	v.SetDefault("database.retention_period", "720h")

	// Instrument defaults
	v.SetDefault("instrument.name", "total-station")
	v.SetDefault("instrument.brand", string(model.BrandLeica))
	v.SetDefault("instrument.model", "TS30")
	v.SetDefault("instrument.auto_connect", false)
	v.SetDefault("instrument.use_math", false)

	// Connection defaults, matching GeoCOM factory line settings
	line := protocol.DefaultConnectionConfig()
	v.SetDefault("connection.type", string(line.Type))
	v.SetDefault("connection.port", "/dev/ttyUSB0")
	v.SetDefault("connection.baud_rate", line.BaudRate)
	v.SetDefault("connection.data_bits", line.DataBits)
	v.SetDefault("connection.parity", line.Parity)
	v.SetDefault("connection.flow_control", line.FlowControl)
	v.SetDefault("connection.stop_bits", line.StopBits)
	v.SetDefault("connection.dial_timeout", line.DialTimeout.String())
	v.SetDefault("connection.keep_alive", true)
	v.SetDefault("connection.poll_interval", line.PollInterval.String())

	// GeoCOM executor timeouts
	timeouts := geocom.DefaultTimeouts()
	v.SetDefault("geocom.write", timeouts.Write.String())
	v.SetDefault("geocom.reply", timeouts.Reply.String())
	v.SetDefault("geocom.quiescence", timeouts.Quiescence.String())
	v.SetDefault("geocom.receive", timeouts.Receive.String())

	// Measurement defaults
	v.SetDefault("measurement.reflectorless", false)
	v.SetDefault("measurement.mode", string(geocom.ModePrecise))
	v.SetDefault("measurement.iterations", 1)
	v.SetDefault("measurement.two_face", false)
	v.SetDefault("measurement.with_distance", true)
	v.SetDefault("measurement.policy", string(geocom.CollectAll))

	// Monitoring defaults
	v.SetDefault("monitoring.health_check_interval", "30s")
	v.SetDefault("monitoring.cleanup_interval", "1h")
	v.SetDefault("monitoring.operation_timeout", "5m")

	// Discovery defaults
	v.SetDefault("discovery.scan_timeout", "60s")
	v.SetDefault("discovery.probe_timeout", "2s")
	v.SetDefault("discovery.tcp_endpoints", []string{})
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	if config.Database.Enabled && config.Database.Host == "" {
		return fmt.Errorf("database.host is required when the database is enabled")
	}

	if config.Instrument.Brand == "" {
		return fmt.Errorf("instrument.brand is required")
	}

	config.Connection.Type = model.ConnectionType(strings.ToUpper(string(config.Connection.Type)))
	if err := config.Connection.Validate(); err != nil {
		return fmt.Errorf("connection: %w", err)
	}

	if config.GeoCOM.Write <= 0 || config.GeoCOM.Reply <= 0 || config.GeoCOM.Quiescence <= 0 {
		return fmt.Errorf("geocom write, reply and quiescence timeouts must be positive")
	}

	if err := config.Measurement.Validate(); err != nil {
		return fmt.Errorf("measurement: %w", err)
	}

	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// DSN returns the lib/pq connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return c.Database.DSN()
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// GetInstrument returns the configured instrument description
func (c *Config) GetInstrument() *model.Instrument {
	return &model.Instrument{
		Name:           c.Instrument.Name,
		Brand:          model.InstrumentBrand(strings.ToUpper(c.Instrument.Brand)),
		Model:          c.Instrument.Model,
		ConnectionType: c.Connection.Type,
		Port:           c.Connection.Address(),
		Status:         model.InstrumentStatusOffline,
	}
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsDebugEnabled checks if debug mode is enabled
func (c *Config) IsDebugEnabled() bool {
	return c.App.Debug || c.IsDevelopment()
}
