package iis

import (
	"fmt"
	"strconv"
	"strings"
)

// ProtocolHTTPS is the only protocol that carries a certificate.
const ProtocolHTTPS = "https"

// SNIMode is the IIS sslFlags value of a binding.
type SNIMode int

const (
	SNINone            SNIMode = 0 // No SNI
	SNIEnabled         SNIMode = 1 // SNI required
	SNICentralStore    SNIMode = 2 // centralized certificate store, no SNI
	SNICentralStoreSNI SNIMode = 3 // centralized certificate store with SNI
)

// Label returns the display label of m, or "" when m is out of range.
func (m SNIMode) Label() string {
	switch m {
	case SNINone:
		return "0 - No SNI"
	case SNIEnabled:
		return "1 - SNI Enabled"
	case SNICentralStore:
		return "2 - Non SNI Binding"
	case SNICentralStoreSNI:
		return "3 - SNI Binding"
	default:
		return ""
	}
}

// Valid reports whether m is one of the four IIS values.
func (m SNIMode) Valid() bool {
	return m >= SNINone && m <= SNICentralStoreSNI
}

// ParseSNIMode accepts a numeric flag ("1") or a display label
// ("1 - SNI Enabled").
func ParseSNIMode(s string) (SNIMode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SNINone, nil
	}
	head, _, _ := strings.Cut(s, " ")
	n, err := strconv.Atoi(head)
	if err != nil || !SNIMode(n).Valid() {
		return 0, fmt.Errorf("invalid SNI flag %q", s)
	}
	return SNIMode(n), nil
}

// Binding is one site binding as reported by the web server.
type Binding struct {
	Site     string
	Protocol string

	// Information is the raw "ip:port:hostheader" string.
	Information string

	IPAddress  string
	Port       string
	HostHeader string

	// Thumbprint is the bound certificate hash, empty when none.
	Thumbprint string

	SNI SNIMode
}

// NewBinding fills the endpoint fields from information.
func NewBinding(site, protocol, information, thumbprint string, sni SNIMode) Binding {
	ip, port, host := SplitInformation(information)
	return Binding{
		Site:        site,
		Protocol:    protocol,
		Information: information,
		IPAddress:   ip,
		Port:        port,
		HostHeader:  host,
		Thumbprint:  thumbprint,
		SNI:         sni,
	}
}

// IsHTTPS reports whether the binding protocol is https.
func (b Binding) IsHTTPS() bool {
	return strings.EqualFold(b.Protocol, ProtocolHTTPS)
}

// SiteBinding returns the endpoint tuple identifying b.
func (b Binding) SiteBinding() SiteBinding {
	return SiteBinding{
		Site:       b.Site,
		IPAddress:  b.IPAddress,
		Port:       b.Port,
		HostHeader: b.HostHeader,
		Protocol:   b.Protocol,
		SNI:        b.SNI,
	}
}

// SplitInformation splits "ip:port:hostheader" into exactly three fields.
// Missing fields are empty. A bracketed IPv6 address is kept whole.
func SplitInformation(information string) (ip, port, host string) {
	rest := information
	if strings.HasPrefix(rest, "[") {
		if end := strings.Index(rest, "]"); end >= 0 {
			ip = rest[:end+1]
			rest = strings.TrimPrefix(rest[end+1:], ":")
			port, host, _ = strings.Cut(rest, ":")
			return ip, port, host
		}
	}

	parts := strings.SplitN(rest, ":", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return parts[0], parts[1], parts[2]
}

// SiteBinding is the tuple that identifies a binding to reconcile.
type SiteBinding struct {
	Site       string
	IPAddress  string
	Port       string
	HostHeader string
	Protocol   string
	SNI        SNIMode
}

// Information returns "ip:port:hostheader".
func (s SiteBinding) Information() string {
	return s.IPAddress + ":" + s.Port + ":" + s.HostHeader
}

// Normalize fills defaults: "*" for an empty address and https for an empty
// protocol.
func (s SiteBinding) Normalize() SiteBinding {
	if s.IPAddress == "" {
		s.IPAddress = "*"
	}
	if s.Protocol == "" {
		s.Protocol = ProtocolHTTPS
	}
	return s
}

// Validate checks the tuple is complete.
func (s SiteBinding) Validate() error {
	if strings.TrimSpace(s.Site) == "" {
		return fmt.Errorf("%w: site name is required", ErrInvalidTarget)
	}
	port, err := strconv.Atoi(s.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%w: invalid port %q", ErrInvalidTarget, s.Port)
	}
	if !s.SNI.Valid() {
		return fmt.Errorf("%w: invalid SNI flag %d", ErrInvalidTarget, int(s.SNI))
	}
	return nil
}
