// Command lwm2m-device runs an LwM2M device against a server.
//
// The device tree, credentials and optional features come from a YAML
// description, overridden by LWM2M_ environment variables (and a .env file)
// and finally by flags.
//
// Usage:
//
//	lwm2m-device [flags]
//
// Flags:
//
//	-config string        Device description (YAML)
//	-endpoint string      Client endpoint name
//	-server string        Server address host:port
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-log-format string    Log format: text, json (default "text")
//	-interactive          Start the interactive shell
//	-simulate             Drive observable numeric resources with synthetic data
//	-protocol-log string  Write a CBOR protocol capture to this file
//
// Examples:
//
//	# PSK device from a description file
//	lwm2m-device -config device.yaml
//
//	# Override the server and watch the traffic
//	lwm2m-device -config device.yaml -server lwm2m.example.com:5684 -log-level debug
//
//	# Simulated sensor with a shell
//	lwm2m-device -config device.yaml -simulate -interactive
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mash-protocol/lwm2m-go/cmd/lwm2m-device/interactive"
	"github.com/mash-protocol/lwm2m-go/pkg/config"
	"github.com/mash-protocol/lwm2m-go/pkg/connection"
	"github.com/mash-protocol/lwm2m-go/pkg/discovery"
	"github.com/mash-protocol/lwm2m-go/pkg/log"
	"github.com/mash-protocol/lwm2m-go/pkg/model"
	"github.com/mash-protocol/lwm2m-go/pkg/persistence"
	"github.com/mash-protocol/lwm2m-go/pkg/service"
	"github.com/mash-protocol/lwm2m-go/pkg/uplink"
)

// Options holds the command-line settings.
type Options struct {
	ConfigFile  string
	Endpoint    string
	Server      string
	LogLevel    string
	LogFormat   string
	Interactive bool
	Simulate    bool
	ProtocolLog string
}

var opts Options

func init() {
	flag.StringVar(&opts.ConfigFile, "config", "", "Device description (YAML)")
	flag.StringVar(&opts.Endpoint, "endpoint", "", "Client endpoint name")
	flag.StringVar(&opts.Server, "server", "", "Server address host:port")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&opts.LogFormat, "log-format", "text", "Log format: text, json")
	flag.BoolVar(&opts.Interactive, "interactive", false, "Start the interactive shell")
	flag.BoolVar(&opts.Simulate, "simulate", false, "Drive observable numeric resources with synthetic data")
	flag.StringVar(&opts.ProtocolLog, "protocol-log", "", "Write a CBOR protocol capture to this file")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lwm2m-device: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var shell *interactive.Shell
	var out io.Writer = os.Stderr
	if opts.Interactive {
		// The shell is created first so log lines do not tear the prompt.
		shell, err = interactive.New()
		if err != nil {
			return err
		}
		out = shell.Stderr()
	}

	logger, err := newLogger(out, opts.LogLevel, opts.LogFormat)
	if err != nil {
		return err
	}
	logger.Info("LwM2M device", "endpoint", cfg.Endpoint, "server", cfg.Server.Address, "security", cfg.Security.Mode)

	svcConfig, closeLog, err := serviceConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLog()

	svc, err := service.NewDeviceService(cfg.BuildDevice, svcConfig)
	if err != nil {
		return fmt.Errorf("create device service: %w", err)
	}
	svc.OnEvent(func(e service.Event) { logEvent(logger, e) })

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	logger.Info("service started", "state", svc.State())

	g, gctx := errgroup.WithContext(ctx)
	if opts.Simulate {
		sim := NewSimulator(svc, logger)
		g.Go(func() error { return sim.Run(gctx) })
	}
	if shell != nil {
		g.Go(func() error { return shell.Run(gctx, svc) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return svc.Stop()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, interactive.ErrExit) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loadConfig layers file, environment and flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = opts.Endpoint
	}
	if opts.Server != "" {
		cfg.Server.Address = opts.Server
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// serviceConfig turns the description into the service configuration. The
// returned func closes the protocol capture.
func serviceConfig(cfg *config.Config, logger *slog.Logger) (service.DeviceConfig, func(), error) {
	sc := service.DefaultDeviceConfig()
	closeLog := func() {}

	sec, err := cfg.TransportSecurity()
	if err != nil {
		return sc, closeLog, err
	}
	sc.Dialer = &connection.Dialer{
		Address:  cfg.Server.Address,
		Security: sec,
		Logger:   logger,
	}
	sc.Reconnect = connection.Options{
		Backoff: connection.BackoffConfig{
			Initial: cfg.Server.ReconnectInitial,
			Max:     cfg.Server.ReconnectMax,
		},
		AttemptTimeout: cfg.Server.HandshakeTimeout,
		Logger:         logger,
	}
	sc.KeepAlive = cfg.KeepAlive.Transport()
	sc.DisableKeepAlive = cfg.KeepAlive.Disabled
	sc.Logger = logger

	if cfg.Persistence.Path != "" {
		sc.StateStore = persistence.NewDeviceStateStore(cfg.Persistence.Path)
	}

	if cfg.Discovery.Enabled {
		sc.Advertiser = discovery.NewMDNSAdvertiser(cfg.AdvertiserConfig())
		sc.DiscoveryInfo = cfg.DiscoveryInfo()
	}

	if cfg.Uplink.Enabled {
		key, err := uplink.LoadKeyFile(cfg.Uplink.KeyFile)
		if err != nil {
			return sc, closeLog, err
		}
		sc.Uplink = uplink.NewClient(uplink.Config{
			Address:  cfg.Uplink.Address,
			DeviceID: cfg.UplinkDeviceID(),
			Key:      key,
			AuthPath: cfg.Uplink.AuthPath,
			DataPath: cfg.Uplink.DataPath,
			Logger:   logger,
		})
		for _, s := range cfg.Uplink.Instances {
			p, err := model.ParsePath(s)
			if err != nil {
				return sc, closeLog, fmt.Errorf("uplink instance %q: %w", s, err)
			}
			sc.UplinkInstances = append(sc.UplinkInstances, p)
		}
		sc.UplinkInterval = cfg.UplinkInterval()
	}

	var loggers []log.Logger
	if opts.ProtocolLog != "" {
		fl, err := log.NewFileLogger(opts.ProtocolLog)
		if err != nil {
			return sc, closeLog, fmt.Errorf("protocol log: %w", err)
		}
		closeLog = func() { _ = fl.Close() }
		loggers = append(loggers, fl)
		logger.Info("protocol capture enabled", "path", opts.ProtocolLog)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		loggers = append(loggers, log.NewSlogAdapter(logger))
	}
	switch len(loggers) {
	case 0:
	case 1:
		sc.ProtocolLogger = loggers[0]
	default:
		sc.ProtocolLogger = log.NewMultiLogger(loggers...)
	}

	return sc, closeLog, nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	hopts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func logEvent(logger *slog.Logger, e service.Event) {
	switch e.Type {
	case service.EventConnected:
		logger.Info("connected to server")
	case service.EventDisconnected:
		logger.Warn("disconnected from server")
	case service.EventReconnecting:
		logger.Info("reconnecting", "attempt", e.Attempt, "delay", e.Delay)
	case service.EventValueChanged:
		logger.Info("value written by server", "path", e.Path)
	case service.EventObservationCancelled:
		logger.Info("observation cancelled by server", "path", e.Path)
	case service.EventResourceDeleted:
		logger.Info("node removed", "path", e.Path)
	case service.EventNotificationSent:
		logger.Debug("notification sent", "path", e.Path)
	}
}
