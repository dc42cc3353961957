// Package service runs inventory, import and binding operations against
// configured hosts. It is shared by the REST API and the CLI.
package service

import (
	"errors"
	"log/slog"

	"github.com/remiblancher/wincert/internal/audit"
	"github.com/remiblancher/wincert/internal/config"
	"github.com/remiblancher/wincert/internal/metrics"
	"github.com/remiblancher/wincert/internal/remote"
)

// ErrInvalidRequest indicates a request the service cannot act on.
var ErrInvalidRequest = errors.New("invalid request")

// OpenerFunc returns the session opener for a host.
type OpenerFunc func(h config.HostConfig) remote.Opener

// Options configures a Service.
type Options struct {
	Logger  *slog.Logger
	Audit   audit.Writer
	Metrics *metrics.Metrics

	// Opener defaults to the host's WinRM or local PowerShell target.
	Opener OpenerFunc

	// AdHocHosts accepts host names missing from the configuration,
	// reached with default settings.
	AdHocHosts bool
}

// Service orchestrates remote operations. Every operation opens its own
// session and closes it before returning.
type Service struct {
	cfg     *config.Config
	opener  OpenerFunc
	metrics *metrics.Metrics
	logger  *slog.Logger
	audit   audit.Writer
	adHoc   bool
}

// New creates a Service for cfg.
func New(cfg *config.Config, opts Options) *Service {
	s := &Service{
		cfg:     cfg,
		opener:  opts.Opener,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		audit:   opts.Audit,
		adHoc:   opts.AdHocHosts,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.audit == nil {
		s.audit = audit.NopWriter{}
	}
	if s.opener == nil {
		s.opener = func(h config.HostConfig) remote.Opener {
			return h.Target().Opener(s.logger)
		}
	}
	return s
}

// Hosts returns the configured hosts.
func (s *Service) Hosts() []config.HostConfig {
	return s.cfg.Hosts
}

// resolve looks up a host and returns it with an instrumented opener.
func (s *Service) resolve(name string) (config.HostConfig, remote.Opener, error) {
	var (
		h   config.HostConfig
		err error
	)
	if s.adHoc {
		h, err = s.cfg.Resolve(name)
	} else {
		h, err = s.cfg.Host(name)
	}
	if err != nil {
		return config.HostConfig{}, nil, err
	}
	return h, s.metrics.Opener(s.opener(h)), nil
}

func storeOrDefault(store string, h config.HostConfig) string {
	if store != "" {
		return store
	}
	return h.Store
}
