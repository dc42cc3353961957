package dto

// ImportRequest represents a certificate import request.
type ImportRequest struct {
	// Certificate is the PFX, DER or PEM content (required).
	Certificate *BinaryData `json:"certificate"`

	// Password is the PFX private key password.
	Password string `json:"password,omitempty"`

	// CryptoProvider is the CSP or KSP name used for the private key.
	CryptoProvider string `json:"crypto_provider,omitempty"`

	// Store is the target store, defaults to the host's store.
	Store string `json:"store,omitempty"`

	// Method is "certutil" (default) or "store".
	Method string `json:"method,omitempty"`
}

// ImportResponse represents the outcome of an import.
type ImportResponse struct {
	Host        string `json:"host"`
	Store       string `json:"store"`
	Method      string `json:"method"`
	Variant     string `json:"variant"`
	ExitCode    int    `json:"exit_code"`
	Succeeded   bool   `json:"succeeded"`
	Thumbprint  string `json:"thumbprint,omitempty"`
	Diagnostics string `json:"diagnostics,omitempty"`
	Error       string `json:"error,omitempty"`
}

// SiteBinding is an explicit binding tuple.
type SiteBinding struct {
	Site       string `json:"site"`
	IPAddress  string `json:"ip_address,omitempty"`
	Port       string `json:"port"`
	HostHeader string `json:"host_header,omitempty"`
	Protocol   string `json:"protocol,omitempty"`
	SNIFlag    int    `json:"sni_flag"`
}

// BindRequest represents a binding reconciliation request. Exactly one of
// Site and RenewalThumbprint must be set.
type BindRequest struct {
	Site              *SiteBinding `json:"site,omitempty"`
	RenewalThumbprint string       `json:"renewal_thumbprint,omitempty"`

	// Thumbprint is the certificate to attach (required).
	Thumbprint string `json:"thumbprint"`

	// Store holds the certificate, defaults to the host's store.
	Store string `json:"store,omitempty"`
}

// BindingOutcome is the result for one binding.
type BindingOutcome struct {
	SiteBinding
	Succeeded bool   `json:"succeeded"`
	Step      string `json:"step,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BindResponse is a reconciliation report.
type BindResponse struct {
	RunID      string           `json:"run_id"`
	Host       string           `json:"host"`
	Mode       string           `json:"mode"`
	Thumbprint string           `json:"thumbprint"`
	Store      string           `json:"store"`
	Succeeded  bool             `json:"succeeded"`
	Error      string           `json:"error,omitempty"`
	Bindings   []BindingOutcome `json:"bindings"`
}
