package dto

// HostInfo describes a configured host. Credentials are never exposed.
type HostInfo struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	Local    bool   `json:"local"`
	Auth     string `json:"auth,omitempty"`

	// Store is the default certificate store of the host.
	Store string `json:"store"`
}

// HostListResponse lists the configured hosts.
type HostListResponse struct {
	Hosts []HostInfo `json:"hosts"`
}
