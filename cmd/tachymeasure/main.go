// cmd/tachymeasure/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"tachymeter-service/internal/config"
	"tachymeter-service/internal/driver"
	"tachymeter-service/internal/driver/geocom"
	"tachymeter-service/internal/model"
	"tachymeter-service/internal/repository"
	"tachymeter-service/internal/service"
	"tachymeter-service/internal/simulator"
	"tachymeter-service/internal/utils"
)

type options struct {
	configPath    string
	connType      string
	port          string
	host          string
	tcpPort       int
	baudRate      int
	mode          string
	iterations    int
	twoFace       bool
	reflectorless bool
	noDistance    bool
	policy        string
	math          bool
	skipModeCheck bool
	format        string
	verbose       bool
}

func main() {
	opts := &options{}
	flag.StringVar(&opts.configPath, "config", "", "path to the configuration file")
	flag.StringVar(&opts.connType, "type", "", "connection type: serial, serial_tarm, tcp or simulator")
	flag.StringVar(&opts.port, "port", "", "serial device, e.g. /dev/ttyUSB0")
	flag.StringVar(&opts.host, "host", "", "serial-over-TCP bridge host")
	flag.IntVar(&opts.tcpPort, "tcp-port", 0, "serial-over-TCP bridge port")
	flag.IntVar(&opts.baudRate, "baud", 0, "serial baud rate")
	flag.StringVar(&opts.mode, "mode", "", "reflector mode: fast or precise")
	flag.IntVar(&opts.iterations, "iterations", 0, "number of iterations")
	flag.BoolVar(&opts.twoFace, "two-face", false, "measure in both faces")
	flag.BoolVar(&opts.reflectorless, "reflectorless", false, "use the reflectorless EDM program")
	flag.BoolVar(&opts.noDistance, "no-distance", false, "measure angles only")
	flag.StringVar(&opts.policy, "policy", "", "failure policy: collect_all or abort_on_failure")
	flag.BoolVar(&opts.math, "math", false, "report azimuths counter-clockwise")
	flag.BoolVar(&opts.skipModeCheck, "skip-mode-check", false, "do not query or switch the measurement program")
	flag.StringVar(&opts.format, "format", "yaml", "output format: yaml or json")
	flag.BoolVar(&opts.verbose, "v", false, "log to stderr")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "tachymeasure: %v\n", err)
		os.Exit(1)
	}
}

func run(opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, opts); err != nil {
		return err
	}

	logger := zap.NewNop()
	if opts.verbose {
		cfg.Logging.Output = "stderr"
		cfg.Logging.Format = "console"
		if logger, err = utils.NewLogger(&cfg.Logging); err != nil {
			return err
		}
		defer utils.CloseLogger(logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sim *simulator.Instrument
	if cfg.Connection.Type == model.ConnectionTypeSimulator {
		sim = simulator.New(simulator.WithName(cfg.Instrument.Model), simulator.WithLogger(logger))
	}

	registry := driver.NewRegistry(logger)
	driver.RegisterDefaultDrivers(registry, logger)
	transports := service.NewTransportFactory(sim, logger)

	instruments := service.NewInstrumentService(registry, transports, nil, cfg, logger)
	defer instruments.Close()
	measurements := service.NewMeasurementService(instruments, repository.NewMemoryRepository(logger), nil, cfg, logger)

	state, err := instruments.Connect(ctx, nil, "cli")
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	run, measureErr := measurements.Measure(ctx, &service.MeasureRequest{
		Config:        &cfg.Measurement,
		UseMath:       &cfg.Instrument.UseMath,
		SkipModeCheck: opts.skipModeCheck,
	})
	if run == nil {
		return measureErr
	}

	out, err := encodeReport(newReport(state, run), opts.format)
	if err != nil {
		return err
	}
	os.Stdout.Write(out)

	if measureErr != nil {
		return measureErr
	}
	if run.Status != model.RunStatusSuccess {
		return fmt.Errorf("run finished %s", run.Status)
	}
	return nil
}

// applyFlags overrides configuration with the flags given on the command line
func applyFlags(cfg *config.Config, opts *options) error {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "type":
			cfg.Connection.Type = model.ConnectionType(strings.ToUpper(opts.connType))
		case "port":
			cfg.Connection.Port = opts.port
		case "host":
			cfg.Connection.Host = opts.host
		case "tcp-port":
			cfg.Connection.TCPPort = opts.tcpPort
		case "baud":
			cfg.Connection.BaudRate = opts.baudRate
		case "mode":
			cfg.Measurement.Mode = geocom.MeasureMode(opts.mode)
		case "iterations":
			cfg.Measurement.Iterations = opts.iterations
		case "two-face":
			cfg.Measurement.TwoFace = opts.twoFace
		case "reflectorless":
			cfg.Measurement.Reflectorless = opts.reflectorless
		case "no-distance":
			cfg.Measurement.WithDistance = !opts.noDistance
		case "policy":
			cfg.Measurement.Policy = geocom.FailurePolicy(opts.policy)
		case "math":
			cfg.Instrument.UseMath = opts.math
		}
	})

	if opts.format != "yaml" && opts.format != "json" {
		return errors.New("format must be yaml or json")
	}
	return nil
}
