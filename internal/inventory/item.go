// Package inventory turns store and binding reads into inventory items.
package inventory

import (
	"github.com/remiblancher/wincert/internal/certstore"
)

// Status is the orchestrator status of an item.
type Status string

// StatusUnknown is the only status this engine reports.
const StatusUnknown Status = "Unknown"

// Parameter keys of binding-decorated items.
const (
	ParamSiteName     = "SiteName"
	ParamPort         = "Port"
	ParamIPAddress    = "IPAddress"
	ParamHostName     = "HostName"
	ParamSniFlag      = "SniFlag"
	ParamProtocol     = "Protocol"
	ParamProviderName = "ProviderName"
	ParamSAN          = "SAN"
)

// Item is one inventoried certificate.
type Item struct {
	// Alias is the certificate thumbprint.
	Alias string `json:"alias" yaml:"alias" cbor:"alias"`

	PrivateKeyEntry bool `json:"private_key_entry" yaml:"private_key_entry" cbor:"private_key_entry"`

	// Certificates holds base64 DER, leaf first.
	Certificates []string `json:"certificates" yaml:"certificates" cbor:"certificates"`

	ItemStatus    Status `json:"item_status" yaml:"item_status" cbor:"item_status"`
	UseChainLevel bool   `json:"use_chain_level" yaml:"use_chain_level" cbor:"use_chain_level"`

	// Parameters is only set for items correlated with a binding.
	Parameters map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty" cbor:"parameters,omitempty"`
}

func newItem(c *certstore.Certificate) Item {
	return Item{
		Alias:           c.Thumbprint,
		PrivateKeyEntry: c.HasPrivateKey,
		Certificates:    []string{c.Base64()},
		ItemStatus:      StatusUnknown,
		UseChainLevel:   false,
	}
}

// FromStore returns one item per certificate, in store order, without
// parameters.
func FromStore(certs []*certstore.Certificate) []Item {
	items := make([]Item, 0, len(certs))
	for _, c := range certs {
		items = append(items, newItem(c))
	}
	return items
}
