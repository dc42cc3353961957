package remote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/masterzen/winrm"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultLocale       = "en-US"
	defaultEnvelopeSize = 153600
)

// WinRMSession runs commands over WS-Management.
type WinRMSession struct {
	target Target
	logger *slog.Logger

	mu     sync.Mutex
	client *winrm.Client
}

var _ Session = (*WinRMSession)(nil)

func newWinRMSession(t Target, logger *slog.Logger) *WinRMSession {
	return &WinRMSession{target: t, logger: logger}
}

// Host returns the target machine name.
func (s *WinRMSession) Host() string {
	return s.target.HostName()
}

// Open builds the WinRM client. No connection is held between commands;
// each Run creates and deletes a remote shell.
func (s *WinRMSession) Open(ctx context.Context) error {
	if err := s.target.Validate(); err != nil {
		return err
	}

	timeout := s.target.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	endpoint := winrm.NewEndpoint(
		s.target.HostName(),
		s.target.Port,
		s.target.Protocol == "https",
		s.target.Insecure,
		nil, nil, nil,
		timeout,
	)

	params := winrm.NewParameters(fmt.Sprintf("PT%dS", int(timeout.Seconds())), defaultLocale, defaultEnvelopeSize)
	if s.target.Auth == AuthNTLM {
		params.TransportDecorator = func() winrm.Transporter { return &winrm.ClientNTLM{} }
	}

	client, err := winrm.NewClientWithParameters(endpoint, s.target.Username, s.target.Password, params)
	if err != nil {
		return fmt.Errorf("failed to create WinRM client for %s: %w", s.target.Endpoint(), err)
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	s.logger.Debug("winrm session opened", "host", s.Host(), "endpoint", s.target.Endpoint(), "auth", s.target.Auth)
	return nil
}

// Close drops the client.
func (s *WinRMSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client = nil
		s.logger.Debug("winrm session closed", "host", s.Host())
	}
	return nil
}

// Run renders cmd and executes it through powershell.exe on the host.
func (s *WinRMSession) Run(ctx context.Context, cmd Command) (*Result, error) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return nil, ErrSessionClosed
	}

	script, err := Render(cmd)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	stdout, stderr, code, err := client.RunWithContextWithString(ctx, winrm.Powershell(bootstrapScript), script)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s on %s: %w", cmd.Name, s.Host(), err)
	}

	res := ParseOutput(stdout)
	if msg := stderrMessage(stderr); msg != "" {
		res.Errors = append(res.Errors, msg)
	}

	s.logger.Debug("remote command finished",
		"host", s.Host(),
		"command", cmd.Name,
		"exit_code", code,
		"lines", len(res.Output),
		"errors", len(res.Errors),
		"duration", time.Since(start),
	)
	return res, nil
}

// stderrMessage returns the meaningful part of a powershell.exe stderr
// stream. CLIXML progress records are not errors.
func stderrMessage(stderr string) string {
	s := strings.TrimSpace(stderr)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "#< CLIXML") && !strings.Contains(s, `S="Error"`) {
		return ""
	}
	return s
}
