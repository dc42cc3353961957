package inventory

import (
	"github.com/remiblancher/wincert/internal/certstore"
	"github.com/remiblancher/wincert/internal/iis"
)

// Correlate returns one item per https binding whose thumbprint matches a
// certificate in certs exactly. Items follow binding order; bindings without
// a thumbprint or a matching certificate are skipped.
func Correlate(certs []*certstore.Certificate, bindings []iis.Binding) []Item {
	items := make([]Item, 0)
	for _, b := range bindings {
		if !b.IsHTTPS() || b.Thumbprint == "" {
			continue
		}
		cert := certstore.FindByThumbprint(certs, b.Thumbprint)
		if cert == nil {
			continue
		}

		item := newItem(cert)
		item.Alias = b.Thumbprint
		item.Parameters = map[string]string{
			ParamSiteName:     b.Site,
			ParamPort:         b.Port,
			ParamIPAddress:    b.IPAddress,
			ParamHostName:     b.HostHeader,
			ParamSniFlag:      b.SNI.Label(),
			ParamProtocol:     b.Protocol,
			ParamProviderName: cert.CryptoProvider,
			ParamSAN:          cert.SAN.String(),
		}
		items = append(items, item)
	}
	return items
}
