package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/c360/simkernel/gateway"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	TCPPort         int
	WSPort          int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("SIMKERNEL_CONFIG", ""),
		"Path to configuration file, empty for built-in defaults (env: SIMKERNEL_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("SIMKERNEL_CONFIG", ""),
		"Path to configuration file, empty for built-in defaults (env: SIMKERNEL_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SIMKERNEL_LOG_LEVEL", ""),
		"Log level override: debug, info, warn, error (env: SIMKERNEL_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SIMKERNEL_LOG_FORMAT", ""),
		"Log format override: text, json (env: SIMKERNEL_LOG_FORMAT)")

	flag.IntVar(&cfg.TCPPort, "tcp-port", 0,
		"TCP listen port override, 0 to keep the configured port")

	flag.IntVar(&cfg.WSPort, "ws-port", 0,
		"WebSocket listen port override, 0 to keep the configured port")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("SIMKERNEL_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: SIMKERNEL_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printDetailedHelp
	flag.Parse()

	return cfg
}

// initializeCLI parses flags and handles the exit-early flags. Flag values
// that feed the configuration are validated there, after merging.
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, true, nil
	}

	return cliCfg, false, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive: %s", cfg.ShutdownTimeout)
	}
	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - component kernel server

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with built-in defaults (TCP listener on port %d)
  %s

  # Run with a config file
  %s --config=/etc/simkernel/config.json

  # Enable the WebSocket listener from the command line
  %s --ws-port=62785

  # Validate a configuration without starting
  %s --config=config.json --validate

Version: %s
Build: %s
`, gateway.DefaultPort, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
