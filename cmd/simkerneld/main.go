// Package main implements the simkernel daemon. It builds the component
// kernel from configuration, opens the configured listeners, and serves
// the wire protocol until signalled.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/simkernel/config"
	"github.com/c360/simkernel/engine"
	"github.com/c360/simkernel/gateway"
	gwnats "github.com/c360/simkernel/gateway/nats"
	"github.com/c360/simkernel/gateway/tcp"
	"github.com/c360/simkernel/gateway/ws"
	"github.com/c360/simkernel/metric"
	"github.com/c360/simkernel/natsclient"
	"github.com/c360/simkernel/registry"
	"github.com/c360/simkernel/treestore"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "simkerneld"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Daemon failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		slog.Info("Configuration is valid", "config_path", cliCfg.ConfigPath)
		return nil
	}

	slog.Info("Starting simkernel daemon",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath,
		"root", cfg.Server.Name)

	ctx := context.Background()
	metricsRegistry := metric.NewMetricsRegistry()

	kernel, err := buildKernel(cfg, logger, metricsRegistry)
	if err != nil {
		return err
	}

	natsClient, err := connectNATS(ctx, cfg, logger, metricsRegistry)
	if err != nil {
		return err
	}
	if natsClient != nil {
		defer func() { _ = natsClient.Close(context.Background()) }()
	}

	if err := attachTreeStore(ctx, cfg, kernel, natsClient, logger); err != nil {
		return err
	}

	if err := kernel.Start(ctx); err != nil {
		return fmt.Errorf("start kernel: %w", err)
	}
	defer func() { _ = kernel.Stop(cliCfg.ShutdownTimeout) }()

	servers, err := buildListeners(cfg, kernel, natsClient, logger, metricsRegistry)
	if err != nil {
		return err
	}

	stopMetrics := startMetricsServer(cfg, metricsRegistry)
	defer stopMetrics()

	return serve(ctx, cliCfg, logger, servers)
}

// buildKernel creates the kernel, registers the builtin component library,
// and applies the configured root identity.
func buildKernel(
	cfg *config.Config,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
) (*engine.Kernel, error) {
	reg := registry.New()
	kernel, err := engine.New(cfg.Server.Name, reg, logger, metricsRegistry)
	if err != nil {
		return nil, fmt.Errorf("create kernel: %w", err)
	}
	if err := kernel.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize kernel: %w", err)
	}
	if cfg.Server.Description != "" {
		kernel.Root().SetDescription(cfg.Server.Description)
	}

	slog.Info("Component types registered", "count", reg.Len(), "types", reg.Types())
	return kernel, nil
}

// connectNATS establishes the broker connection shared by the NATS bridge
// and the tree store. Returns nil when NATS is disabled.
func connectNATS(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
) (*natsclient.Client, error) {
	if !cfg.NATS.Enabled {
		return nil, nil
	}

	clientName := cfg.NATS.Name
	if clientName == "" {
		clientName = appName
	}
	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(metricsRegistry),
		natsclient.WithName(clientName),
	}
	switch {
	case cfg.NATS.Token != "":
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	case cfg.NATS.Username != "":
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}

	client, err := natsclient.NewClient(cfg.NATS.ResolvedURL(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.ResolvedURL())
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection timeout: %w", err)
	}
	return client, nil
}

// attachTreeStore opens the snapshot bucket and registers the persistence
// signals on the root. Must run before kernel.Start.
func attachTreeStore(
	ctx context.Context,
	cfg *config.Config,
	kernel *engine.Kernel,
	natsClient *natsclient.Client,
	logger *slog.Logger,
) error {
	if !cfg.TreeStore.Enabled {
		return nil
	}

	store, err := treestore.NewStore(ctx, natsClient, treestore.Config{
		Bucket:  cfg.TreeStore.Bucket,
		History: uint8(cfg.TreeStore.History),
	}, logger)
	if err != nil {
		return fmt.Errorf("open tree store: %w", err)
	}
	if err := kernel.EnableTreeStore(store); err != nil {
		return fmt.Errorf("enable tree store: %w", err)
	}

	slog.Info("Tree store enabled", "bucket", cfg.TreeStore.Bucket)
	return nil
}

// buildListeners constructs the enabled gateway servers around the kernel.
func buildListeners(
	cfg *config.Config,
	kernel *engine.Kernel,
	natsClient *natsclient.Client,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
) ([]gateway.Server, error) {
	var servers []gateway.Server

	if cfg.TCP.Enabled {
		srv, err := tcp.NewServer("tcp", kernel, tcp.Config{
			Addr: cfg.TCP.Addr(gateway.DefaultPort),
			TLS:  cfg.Security.TLS.Server,
		}, logger, metricsRegistry)
		if err != nil {
			return nil, fmt.Errorf("build tcp listener: %w", err)
		}
		servers = append(servers, srv)
	}

	if cfg.WS.Enabled {
		srv, err := ws.NewServer("ws", kernel, ws.Config{
			Addr:      cfg.WS.Addr(gateway.DefaultWSPort),
			Path:      cfg.WS.Path,
			AuthToken: cfg.WS.AuthToken,
			TLS:       cfg.Security.TLS.Server,
		}, logger, metricsRegistry)
		if err != nil {
			return nil, fmt.Errorf("build ws listener: %w", err)
		}
		servers = append(servers, srv)
	}

	if cfg.NATS.Enabled {
		srv, err := gwnats.NewServer("nats", kernel, natsClient, gwnats.Config{
			Subject: cfg.NATS.Subject,
			Queue:   cfg.NATS.Queue,
		}, logger, metricsRegistry)
		if err != nil {
			return nil, fmt.Errorf("build nats bridge: %w", err)
		}
		servers = append(servers, srv)
	}

	return servers, nil
}

// startMetricsServer runs the Prometheus endpoint in the background and
// returns its stop function. A disabled endpoint returns a no-op.
func startMetricsServer(cfg *config.Config, metricsRegistry *metric.MetricsRegistry) func() {
	if !cfg.Metrics.Enabled {
		return func() {}
	}

	srv := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, metricsRegistry, cfg.Security)
	go func() {
		slog.Info("Metrics endpoint listening", "address", srv.Address())
		if err := srv.Start(); err != nil {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	return func() {
		if err := srv.Stop(); err != nil {
			slog.Warn("Metrics server stop failed", "error", err)
		}
	}
}

// serve runs the listeners under one supervisor until a signal arrives or
// a listener fails, then drains everything.
func serve(ctx context.Context, cliCfg *CLIConfig, logger *slog.Logger, servers []gateway.Server) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	supervisor := gateway.NewSupervisor(logger, cliCfg.ShutdownTimeout, servers...)

	slog.Info("Daemon ready", "listeners", len(servers))
	err := supervisor.Run(signalCtx)
	if signalCtx.Err() != nil {
		slog.Info("Received shutdown signal")
	}
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	slog.Info("Daemon shutdown complete")
	return nil
}

// loadConfiguration resolves the effective configuration: the file when
// one is named, the built-in defaults otherwise, with flag overrides
// applied on top and the result re-validated.
func loadConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	cfg := config.Default()
	if cliCfg.ConfigPath != "" {
		loaded, err := config.Load(cliCfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	applyFlagOverrides(cfg, cliCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlagOverrides layers command-line overrides on the loaded file.
// A port override also enables the listener, so -ws-port alone turns the
// WebSocket listener on.
func applyFlagOverrides(cfg *config.Config, cliCfg *CLIConfig) {
	if cliCfg.TCPPort > 0 {
		cfg.TCP.Enabled = true
		cfg.TCP.Port = cliCfg.TCPPort
	}
	if cliCfg.WSPort > 0 {
		cfg.WS.Enabled = true
		cfg.WS.Port = cliCfg.WSPort
	}
	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}
}
