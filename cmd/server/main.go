// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "tachymeter-service/docs"
	"tachymeter-service/internal/config"
	"tachymeter-service/internal/database"
	"tachymeter-service/internal/driver"
	"tachymeter-service/internal/handler"
	"tachymeter-service/internal/model"
	"tachymeter-service/internal/repository"
	"tachymeter-service/internal/routes"
	"tachymeter-service/internal/service"
	"tachymeter-service/internal/simulator"
	"tachymeter-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB

	// Background loops stop when this is cancelled
	ctx    context.Context
	cancel context.CancelFunc

	eventBus  *handler.EventBus
	simulator *simulator.Instrument

	// Services
	instrumentService  *service.InstrumentService
	measurementService *service.MeasurementService
	discoveryService   *service.DiscoveryService

	// Repositories
	runRepo repository.MeasurementRepository

	// Driver registry
	driverRegistry *driver.Registry
}

// @title Tachymeter Service API
// @version 1.0.0
// @description GeoCOM total station control: connection, measurement mode, pointing and polar measurement runs

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8085
// @BasePath /api/v1
func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	migrateCmd := flag.String("migrate", "", "run database migrations and exit: up, down or version")
	flag.Parse()

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if *migrateCmd != "" {
		if err := app.runMigrationCommand(*migrateCmd); err != nil {
			app.logger.Error("Migration command failed", zap.Error(err))
			app.shutdown()
			os.Exit(1)
		}
		app.shutdown()
		return
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "tachymeter-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initializeRepositories()
	app.initializeDriverRegistry()
	app.initializeServices()
	app.initializeServer()

	return app, nil
}

// initializeDatabase sets up the database connection when persistence is
// enabled and applies migrations
func (app *Application) initializeDatabase() error {
	if !app.config.Database.Enabled {
		app.logger.Info("Database disabled, measurement runs are kept in memory")
		return nil
	}

	db, err := database.NewConnection(&app.config.Database, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	migrator := database.NewMigrator(db, app.logger, &app.config.Database)
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	app.logger.Info("Database initialized successfully")
	return nil
}

// runMigrationCommand runs a one-off migration command
func (app *Application) runMigrationCommand(cmd string) error {
	if app.database == nil {
		return errors.New("database is disabled")
	}
	migrator := database.NewMigrator(app.database, app.logger, &app.config.Database)

	switch cmd {
	case "up":
		return migrator.Up()
	case "down":
		return migrator.Down()
	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate command %q", cmd)
	}
}

// initializeRepositories creates repository instances
func (app *Application) initializeRepositories() {
	if app.database != nil {
		app.runRepo = repository.NewMeasurementRepository(app.database, app.logger)
	} else {
		app.runRepo = repository.NewMemoryRepository(app.logger)
	}

	app.logger.Info("Repositories initialized successfully")
}

// initializeDriverRegistry sets up the instrument driver registry
func (app *Application) initializeDriverRegistry() {
	app.driverRegistry = driver.NewRegistry(app.logger)
	driver.RegisterDefaultDrivers(app.driverRegistry, app.logger)

	app.logger.Info("Driver registry initialized successfully",
		zap.Int("registered_drivers", len(app.driverRegistry.ListDrivers())),
	)
}

// initializeServices creates service instances
func (app *Application) initializeServices() {
	if app.config.Connection.Type == model.ConnectionTypeSimulator {
		app.simulator = simulator.New(
			simulator.WithName(app.config.Instrument.Model),
			simulator.WithLogger(app.logger),
		)
		app.logger.Warn("Using the built-in instrument simulator")
	}

	app.eventBus = handler.NewEventBus(app.logger)
	go app.eventBus.Start()

	transports := service.NewTransportFactory(app.simulator, app.logger)

	app.instrumentService = service.NewInstrumentService(
		app.driverRegistry,
		transports,
		app.eventBus,
		app.config,
		app.logger,
	)

	app.measurementService = service.NewMeasurementService(
		app.instrumentService,
		app.runRepo,
		app.eventBus,
		app.config,
		app.logger,
	)

	app.discoveryService = service.NewDiscoveryService(
		app.driverRegistry,
		transports,
		app.config,
		app.logger,
	)

	app.logger.Info("Services initialized successfully")
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.eventBus,
		app.instrumentService,
		app.measurementService,
		app.discoveryService,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)
}

// startBackgroundServices connects the instrument when configured and
// starts the health and cleanup loops
func (app *Application) startBackgroundServices() {
	if app.config.Instrument.AutoConnect {
		ctx, cancel := context.WithTimeout(app.ctx, 30*time.Second)
		if _, err := app.instrumentService.Connect(ctx, nil, "auto-connect"); err != nil {
			app.logger.Error("Auto-connect failed", zap.Error(err))
		}
		cancel()
	}

	if interval := app.config.Monitoring.HealthCheckInterval; interval > 0 {
		app.instrumentService.StartHealthMonitor(app.ctx, interval)
	}
	if interval := app.config.Monitoring.CleanupInterval; interval > 0 && app.config.Database.RetentionPeriod > 0 {
		app.measurementService.StartCleanup(app.ctx, interval)
	}

	app.logger.Info("Background services started")
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "tachymeter-service")
	serviceLogger.LogServiceStop("shutdown")

	app.cancel()

	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := app.server.Shutdown(ctx); err != nil {
			app.logger.Error("HTTP server shutdown error", zap.Error(err))
		} else {
			app.logger.Info("HTTP server stopped")
		}
	}

	if app.instrumentService != nil {
		if err := app.instrumentService.Close(); err != nil {
			app.logger.Error("Instrument close error", zap.Error(err))
		}
	}

	if app.eventBus != nil {
		app.eventBus.Close()
	}

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start serves HTTP until a shutdown signal arrives
func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		var err error
		if app.config.Server.TLS.Enabled {
			err = app.server.ListenAndServeTLS(
				app.config.Server.TLS.CertFile,
				app.config.Server.TLS.KeyFile,
			)
		} else {
			err = app.server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()
	app.waitForShutdown()

	return nil
}
