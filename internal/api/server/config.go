// Package server provides HTTP server configuration and lifecycle management.
package server

import (
	"time"

	"github.com/remiblancher/wincert/internal/config"
)

// Config holds the server configuration.
type Config struct {
	// Address is the listen address, host:port.
	Address string

	// TLS configuration (optional)
	TLSCert string
	TLSKey  string

	// Timeouts
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:         config.DefaultListen,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// FromSettings builds a Config from the server section of the configuration
// file, keeping defaults for unset values.
func FromSettings(s config.ServerConfig) *Config {
	c := DefaultConfig()
	if s.Listen != "" {
		c.Address = s.Listen
	}
	c.TLSCert = s.TLSCert
	c.TLSKey = s.TLSKey
	if s.ReadTimeout > 0 {
		c.ReadTimeout = s.ReadTimeout
	}
	if s.WriteTimeout > 0 {
		c.WriteTimeout = s.WriteTimeout
	}
	return c
}

// TLSEnabled reports whether a certificate and key are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}
