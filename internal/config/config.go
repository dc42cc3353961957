// Package config loads host and server settings from YAML, a .env file and
// WINCERT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/remiblancher/wincert/internal/remote"
)

// Defaults applied to hosts and server settings.
const (
	DefaultStore     = "My"
	DefaultAuth      = remote.AuthNTLM
	DefaultProtocol  = "http"
	DefaultHTTPPort  = 5985
	DefaultHTTPSPort = 5986
	DefaultTimeout   = 60 * time.Second
	DefaultListen    = "127.0.0.1:8080"
	DefaultRateLimit = 1.0
	DefaultBurst     = 5
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WINCERT_"

// ErrUnknownHost is returned when a host name is not configured.
var ErrUnknownHost = errors.New("unknown host")

// Config is the root configuration document.
type Config struct {
	Hosts    []HostConfig `yaml:"hosts"`
	Server   ServerConfig `yaml:"server"`
	AuditLog string       `yaml:"audit_log"`
	Log      LogConfig    `yaml:"log"`
}

// HostConfig describes one managed Windows host.
type HostConfig struct {
	Name     string `yaml:"name"`
	Machine  string `yaml:"machine"`
	Protocol string `yaml:"protocol"`
	Port     int    `yaml:"port"`
	Auth     string `yaml:"auth"`
	Username string `yaml:"username"`

	// PasswordEnv names the environment variable holding the password.
	PasswordEnv string `yaml:"password_env"`

	Insecure   bool          `yaml:"insecure"`
	Timeout    time.Duration `yaml:"timeout"`
	Store      string        `yaml:"store"`
	PowerShell string        `yaml:"powershell"`

	password string
}

// ServerConfig configures the REST server.
type ServerConfig struct {
	Listen       string        `yaml:"listen"`
	RateLimit    float64       `yaml:"rate_limit"` // mutating requests per second per client
	Burst        int           `yaml:"burst"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	TLSCert      string        `yaml:"tls_cert"`
	TLSKey       string        `yaml:"tls_key"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

// LogConfig configures the technical log.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DefaultConfig returns a configuration with no hosts and default server
// settings.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:       DefaultListen,
			RateLimit:    DefaultRateLimit,
			Burst:        DefaultBurst,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path (optional), loads envFile (or ./.env
// when present) and applies WINCERT_* overrides.
func Load(path, envFile string) (*Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	for i := range cfg.Hosts {
		cfg.Hosts[i].applyDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}

func getenv(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	return v, ok && v != ""
}

func (c *Config) applyEnv() error {
	if v, ok := getenv("AUDIT_LOG"); ok {
		c.AuditLog = v
	}
	if v, ok := getenv("LISTEN"); ok {
		c.Server.Listen = v
	}
	if v, ok := getenv("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getenv("LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	if v, ok := getenv("RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sRATE_LIMIT %q: %w", EnvPrefix, v, err)
		}
		c.Server.RateLimit = f
	}
	if v, ok := getenv("BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sBURST %q: %w", EnvPrefix, v, err)
		}
		c.Server.Burst = n
	}
	return nil
}

// applyDefaults fills unset fields and resolves the password.
func (h *HostConfig) applyDefaults() {
	if h.Machine == "" {
		h.Machine = h.Name
	}
	if h.Name == "" {
		h.Name, _ = remote.ParseMachine(h.Machine)
	}
	if h.Protocol == "" {
		h.Protocol = DefaultProtocol
	}
	if h.Port == 0 {
		h.Port = DefaultHTTPPort
		if h.Protocol == "https" {
			h.Port = DefaultHTTPSPort
		}
	}
	if h.Auth == "" {
		h.Auth = DefaultAuth
	}
	if h.Timeout == 0 {
		h.Timeout = DefaultTimeout
	}
	if h.Store == "" {
		h.Store = DefaultStore
	}
	if h.Username == "" {
		h.Username, _ = getenv("USERNAME")
	}

	h.password = ""
	if h.PasswordEnv != "" {
		h.password = os.Getenv(h.PasswordEnv)
	}
	if h.password == "" {
		h.password, _ = getenv("PASSWORD")
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Hosts))
	for i, h := range c.Hosts {
		if h.Name == "" {
			return fmt.Errorf("hosts[%d]: name or machine is required", i)
		}
		key := strings.ToLower(h.Name)
		if seen[key] {
			return fmt.Errorf("hosts[%d]: duplicate host %q", i, h.Name)
		}
		seen[key] = true
		if err := h.Target().Validate(); err != nil {
			return fmt.Errorf("host %s: %w", h.Name, err)
		}
	}

	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		return fmt.Errorf("server.burst must be at least 1 when rate limiting is enabled")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("server.tls_cert and server.tls_key must be set together")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}

// Host returns the configured host named name (case-insensitive).
func (c *Config) Host(name string) (HostConfig, error) {
	for _, h := range c.Hosts {
		if strings.EqualFold(h.Name, name) {
			return h, nil
		}
	}
	return HostConfig{}, fmt.Errorf("%w: %s", ErrUnknownHost, name)
}

// Resolve returns the configured host named name, or an ad-hoc host using
// name as the machine and default settings.
func (c *Config) Resolve(name string) (HostConfig, error) {
	if h, err := c.Host(name); err == nil {
		return h, nil
	}
	h := HostConfig{Machine: name}
	h.applyDefaults()
	if err := h.Target().Validate(); err != nil {
		return HostConfig{}, fmt.Errorf("host %s: %w", name, err)
	}
	return h, nil
}

// Target returns the connection settings of h.
func (h HostConfig) Target() remote.Target {
	return remote.Target{
		Machine:    h.Machine,
		Protocol:   h.Protocol,
		Port:       h.Port,
		Auth:       h.Auth,
		Username:   h.Username,
		Password:   h.password,
		Insecure:   h.Insecure,
		Timeout:    h.Timeout,
		PowerShell: h.PowerShell,
	}
}

// HasPassword reports whether a password was resolved for h.
func (h HostConfig) HasPassword() bool {
	return h.password != ""
}
