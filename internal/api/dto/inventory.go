package dto

// InventoryItem is one inventory entry.
type InventoryItem struct {
	// Alias is the certificate thumbprint.
	Alias string `json:"alias"`

	PrivateKeyEntry bool `json:"private_key_entry"`

	// Certificates holds base64 DER certificates, leaf first.
	Certificates []string `json:"certificates"`

	ItemStatus    string `json:"item_status"`
	UseChainLevel bool   `json:"use_chain_level"`

	// Parameters is only set for binding-aware inventories.
	Parameters map[string]string `json:"parameters,omitempty"`
}

// InventoryResponse is the inventory of one store on one host.
type InventoryResponse struct {
	Host     string          `json:"host"`
	Store    string          `json:"store"`
	TakenAt  string          `json:"taken_at"` // RFC3339 format
	Bindings bool            `json:"bindings"`
	Items    []InventoryItem `json:"items"`
}

// BindingInfo describes one site binding.
type BindingInfo struct {
	Site        string `json:"site"`
	Protocol    string `json:"protocol"`
	Information string `json:"information"`
	IPAddress   string `json:"ip_address"`
	Port        string `json:"port"`
	HostHeader  string `json:"host_header"`
	Thumbprint  string `json:"thumbprint,omitempty"`
	SNIFlag     int    `json:"sni_flag"`
	SNILabel    string `json:"sni_label,omitempty"`
}

// BindingListResponse lists the site bindings of a host.
type BindingListResponse struct {
	Host     string        `json:"host"`
	Bindings []BindingInfo `json:"bindings"`
}
