package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/c360/simkernel/component"
	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/gateway"
	"github.com/c360/simkernel/pkg/security"
)

// Config is the daemon configuration: one JSON document describing the
// kernel identity, the listeners, and the optional NATS-backed services.
// Durations do not appear here; per-listener timeouts stay at their
// compiled defaults.
type Config struct {
	Server    ServerConfig    `json:"server"`
	TCP       ListenerConfig  `json:"tcp"`
	WS        WSConfig        `json:"ws"`
	NATS      NATSConfig      `json:"nats,omitempty"`
	TreeStore TreeStoreConfig `json:"tree_store,omitempty"`
	Metrics   MetricsConfig   `json:"metrics,omitempty"`
	Security  security.Config `json:"security,omitempty"`
	Log       LogConfig       `json:"log,omitempty"`
}

// ServerConfig is the kernel identity.
type ServerConfig struct {
	// Name is the root component name, the first segment of every
	// absolute path this kernel serves.
	Name string `json:"name"`

	// Description is free text shown in listings of the root.
	Description string `json:"description,omitempty"`
}

// ListenerConfig describes one socket listener.
type ListenerConfig struct {
	Enabled bool `json:"enabled"`

	// Host is the bind host. Empty means all interfaces.
	Host string `json:"host,omitempty"`

	// Port is the listen port, restricted to the dynamic range. 0 means
	// the listener's default port.
	Port int `json:"port,omitempty"`
}

// Addr returns the host:port bind address, filling in the given default
// port when none is configured.
func (l ListenerConfig) Addr(defaultPort int) string {
	port := l.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(l.Host, strconv.Itoa(port))
}

func (l ListenerConfig) validate(section string) error {
	if !l.Enabled || l.Port == 0 {
		return nil
	}
	if err := gateway.ValidatePort(l.Port); err != nil {
		return fmt.Errorf("%s.port: %w", section, err)
	}
	return nil
}

// WSConfig describes the WebSocket listener.
type WSConfig struct {
	ListenerConfig

	// Path is the HTTP endpoint path. Empty means "/".
	Path string `json:"path,omitempty"`

	// AuthToken enables bearer-token authentication when non-empty.
	AuthToken string `json:"auth_token,omitempty"`
}

// NATSConfig describes the broker connection shared by the NATS bridge
// and the tree store.
type NATSConfig struct {
	Enabled bool `json:"enabled"`

	// URL is the broker address. Empty means nats://localhost:4222.
	URL string `json:"url,omitempty"`

	// Name is the client name reported to the broker.
	Name string `json:"name,omitempty"`

	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`

	// Subject and Queue configure the dispatch bridge. Empty means
	// the bridge defaults.
	Subject string `json:"subject,omitempty"`
	Queue   string `json:"queue,omitempty"`
}

// DefaultNATSURL is the broker address used when none is configured.
const DefaultNATSURL = "nats://localhost:4222"

// ResolvedURL returns the configured broker address or the default.
func (n NATSConfig) ResolvedURL() string {
	if n.URL == "" {
		return DefaultNATSURL
	}
	return n.URL
}

// TreeStoreConfig describes snapshot persistence. It rides on the NATS
// connection, so enabling it requires NATS.
type TreeStoreConfig struct {
	Enabled bool `json:"enabled"`

	// Bucket is the KV bucket name. Empty means the store default.
	Bucket string `json:"bucket,omitempty"`

	// History is how many revisions to keep per snapshot. 0 means the
	// store default.
	History int `json:"history,omitempty"`
}

// MetricsConfig describes the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `json:"enabled"`

	// Port is the HTTP listen port. 0 means 9090. The endpoint is not a
	// protocol listener, so the dynamic-range rule does not apply.
	Port int `json:"port,omitempty"`

	// Path is the scrape path. Empty means /metrics.
	Path string `json:"path,omitempty"`
}

// LogConfig describes the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string `json:"level,omitempty"`

	// Format is text or json. Empty means text.
	Format string `json:"format,omitempty"`
}

// SlogLevel maps the configured level name onto slog.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch l.Level {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level %q (use debug, info, warn, or error): %w",
			l.Level, kerrors.ErrInvalidConfig)
	}
}

// Default returns a runnable configuration: TCP on the default port, no
// WebSocket, no NATS, text logging at info.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:        "root",
			Description: "component kernel",
		},
		TCP: ListenerConfig{Enabled: true},
	}
}

// Load reads, parses, and validates one configuration file. Absent fields
// keep their Default values, so a file carrying only overrides is enough.
// Environment overrides apply after the file and before validation.
func Load(path string) (*Config, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("%v: %w", err, kerrors.ErrInvalidConfig),
			"Config", "Load", "read file")
	}
	if err := validateJSONDepth(data); err != nil {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("%s: %v: %w", path, err, kerrors.ErrInvalidConfig),
			"Config", "Load", "structure check")
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, kerrors.WrapInvalid(
			fmt.Errorf("%s: %v: %w", path, err, kerrors.ErrInvalidConfig),
			"Config", "Load", "parse")
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, kerrors.WrapInvalid(err, "Config", "Load", "environment overrides")
	}
	if err := cfg.Validate(); err != nil {
		return nil, kerrors.WrapInvalid(err, "Config", "Load", "validation")
	}
	return cfg, nil
}

// Validate checks the configuration field by field. The first failure is
// returned with its JSON path so operators can find it in the file.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("server.name is required: %w", kerrors.ErrInvalidConfig)
	}
	if err := component.ValidateName(c.Server.Name); err != nil {
		return fmt.Errorf("server.name: %w", err)
	}

	if err := c.TCP.validate("tcp"); err != nil {
		return err
	}
	if err := c.WS.validate("ws"); err != nil {
		return err
	}
	if !c.TCP.Enabled && !c.WS.Enabled && !c.NATS.Enabled {
		return fmt.Errorf("no listener enabled (tcp, ws, or nats): %w", kerrors.ErrInvalidConfig)
	}

	if c.TreeStore.Enabled && !c.NATS.Enabled {
		return fmt.Errorf("tree_store.enabled requires nats.enabled: %w", kerrors.ErrInvalidConfig)
	}
	if c.TreeStore.History < 0 || c.TreeStore.History > 255 {
		return fmt.Errorf("tree_store.history %d outside 0-255: %w",
			c.TreeStore.History, kerrors.ErrInvalidConfig)
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port %d outside 0-65535: %w", c.Metrics.Port, kerrors.ErrInvalidConfig)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q (use text or json): %w", c.Log.Format, kerrors.ErrInvalidConfig)
	}

	if err := c.validateSecurity(); err != nil {
		return fmt.Errorf("security: %w", err)
	}
	return nil
}

// validateSecurity checks the TLS file references so a bad path fails at
// load, not at the first client connection.
func (c *Config) validateSecurity() error {
	srv := c.Security.TLS.Server
	if srv.Enabled {
		if srv.CertFile == "" {
			return fmt.Errorf("tls.server.cert_file is required when TLS is enabled: %w", kerrors.ErrInvalidConfig)
		}
		if srv.KeyFile == "" {
			return fmt.Errorf("tls.server.key_file is required when TLS is enabled: %w", kerrors.ErrInvalidConfig)
		}
		if _, err := os.Stat(srv.CertFile); err != nil {
			return fmt.Errorf("tls.server.cert_file: %v: %w", err, kerrors.ErrInvalidConfig)
		}
		if _, err := os.Stat(srv.KeyFile); err != nil {
			return fmt.Errorf("tls.server.key_file: %v: %w", err, kerrors.ErrInvalidConfig)
		}
		if err := validateTLSVersion(srv.MinVersion); err != nil {
			return fmt.Errorf("tls.server.min_version: %w", err)
		}
	}

	cli := c.Security.TLS.Client
	for i, caFile := range cli.CAFiles {
		if _, err := os.Stat(caFile); err != nil {
			return fmt.Errorf("tls.client.ca_files[%d]: %v: %w", i, err, kerrors.ErrInvalidConfig)
		}
	}
	if err := validateTLSVersion(cli.MinVersion); err != nil {
		return fmt.Errorf("tls.client.min_version: %w", err)
	}
	return nil
}

func validateTLSVersion(version string) error {
	switch version {
	case "", "1.2", "1.3":
		return nil
	default:
		return fmt.Errorf("invalid TLS version %q (use \"1.2\" or \"1.3\"): %w",
			version, kerrors.ErrInvalidConfig)
	}
}

// EnvPrefix is the prefix of the recognized environment overrides.
const EnvPrefix = "SIMKERNEL"

// applyEnvOverrides layers secrets and deployment addresses from the
// environment over the file, so credentials need not live on disk.
func applyEnvOverrides(cfg *Config) error {
	overrides := []struct {
		key   string
		apply func(string)
	}{
		{EnvPrefix + "_NATS_URL", func(v string) { cfg.NATS.URL = v }},
		{EnvPrefix + "_NATS_USERNAME", func(v string) { cfg.NATS.Username = v }},
		{EnvPrefix + "_NATS_PASSWORD", func(v string) { cfg.NATS.Password = v }},
		{EnvPrefix + "_NATS_TOKEN", func(v string) { cfg.NATS.Token = v }},
		{EnvPrefix + "_AUTH_TOKEN", func(v string) { cfg.WS.AuthToken = v }},
		{EnvPrefix + "_LOG_LEVEL", func(v string) { cfg.Log.Level = v }},
	}
	for _, o := range overrides {
		val := os.Getenv(o.key)
		if val == "" {
			continue
		}
		if err := validateEnvVar(o.key, val); err != nil {
			return err
		}
		o.apply(val)
	}
	return nil
}

// Clone deep-copies the configuration through a JSON round trip, so the
// copies handed to subsystems never alias the live document.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// SaveToFile writes the configuration as indented JSON with owner-only
// permissions.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return kerrors.WrapFatal(err, "Config", "SaveToFile", "marshal")
	}
	if err := safeWriteFile(path, data); err != nil {
		return kerrors.WrapInvalid(
			fmt.Errorf("%v: %w", err, kerrors.ErrInvalidConfig),
			"Config", "SaveToFile", "write file")
	}
	return nil
}

// String renders the configuration as indented JSON for logs and debug
// dumps. Credentials are included; do not log at info level.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// SafeConfig wraps a Config for concurrent access: readers get deep
// copies, writers swap the whole document after validation.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig wraps an initial configuration. Nil starts empty.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update validates and swaps in a new configuration.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil: %w", kerrors.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
