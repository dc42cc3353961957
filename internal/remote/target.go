package remote

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Auth methods supported by the WinRM transport.
const (
	AuthBasic = "basic"
	AuthNTLM  = "ntlm"
)

// Target describes how to reach a host.
type Target struct {
	// Machine is the host name or address. The form "name|localmachine"
	// (or plain "localhost") selects a local PowerShell process; the name
	// is then only used for diagnostics.
	Machine string

	Protocol string // "http" or "https"
	Port     int
	Auth     string // AuthBasic or AuthNTLM

	Username string
	Password string

	// Insecure skips TLS verification of the WinRM endpoint.
	Insecure bool

	// Timeout bounds each WinRM operation.
	Timeout time.Duration

	// PowerShell is the executable used for local sessions.
	PowerShell string
}

// ParseMachine splits "name|localmachine" into the machine name and whether
// the session must run locally.
func ParseMachine(machine string) (name string, local bool) {
	name, arg, found := strings.Cut(machine, "|")
	if !found {
		name = machine
	}
	local = strings.EqualFold(name, "localhost") ||
		(found && strings.EqualFold(arg, "localmachine"))
	return name, local
}

// HostName returns the machine name without the local marker.
func (t Target) HostName() string {
	name, _ := ParseMachine(t.Machine)
	return name
}

// IsLocal reports whether the target runs in a local PowerShell process.
func (t Target) IsLocal() bool {
	_, local := ParseMachine(t.Machine)
	return local
}

// Validate checks the fields required by the selected transport.
func (t Target) Validate() error {
	if t.HostName() == "" {
		return fmt.Errorf("machine name is required")
	}
	if t.IsLocal() {
		return nil
	}
	switch t.Protocol {
	case "http", "https":
	default:
		return fmt.Errorf("unsupported WinRM protocol %q (use http or https)", t.Protocol)
	}
	if t.Port <= 0 || t.Port > 65535 {
		return fmt.Errorf("invalid WinRM port %d", t.Port)
	}
	switch t.Auth {
	case "", AuthBasic, AuthNTLM:
	default:
		return fmt.Errorf("unsupported WinRM auth %q (use basic or ntlm)", t.Auth)
	}
	return nil
}

// Endpoint returns the WinRM URL for diagnostics.
func (t Target) Endpoint() string {
	if t.IsLocal() {
		return "local://" + t.HostName()
	}
	return fmt.Sprintf("%s://%s:%d/wsman", t.Protocol, t.HostName(), t.Port)
}

// NewSession returns an unopened session for t.
func NewSession(t Target, logger *slog.Logger) Session {
	if logger == nil {
		logger = slog.Default()
	}
	if t.IsLocal() {
		return newLocalSession(t, logger)
	}
	return newWinRMSession(t, logger)
}

// Opener returns an Opener creating sessions for t.
func (t Target) Opener(logger *slog.Logger) Opener {
	return func() Session { return NewSession(t, logger) }
}
