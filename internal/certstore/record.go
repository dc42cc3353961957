package certstore

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/remiblancher/wincert/internal/san"
)

// Certificate is one certificate found in a store.
type Certificate struct {
	// Thumbprint is the hex thumbprint as reported by the store.
	Thumbprint string

	// RawData is the DER encoding.
	RawData []byte

	HasPrivateKey bool

	// CryptoProvider is the key provider name, empty without a private key.
	CryptoProvider string

	SAN san.Names
}

// Base64 returns RawData in standard base64.
func (c *Certificate) Base64() string {
	return base64.StdEncoding.EncodeToString(c.RawData)
}

// Parse decodes RawData for display purposes.
func (c *Certificate) Parse() (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(c.RawData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate %s: %w", c.Thumbprint, err)
	}
	return cert, nil
}

// storeRow is the JSON shape emitted by the list script, one per line.
type storeRow struct {
	Thumbprint    string `json:"Thumbprint"`
	HasPrivateKey bool   `json:"HasPrivateKey"`
	RawData       string `json:"RawData"`
	CSP           string `json:"CSP"`
	San           string `json:"San"`
}

// BuildRecord turns one store row into a Certificate.
func BuildRecord(line string) (*Certificate, error) {
	var row storeRow
	if err := json.Unmarshal([]byte(line), &row); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	thumbprint := strings.TrimSpace(row.Thumbprint)
	if thumbprint == "" {
		return nil, fmt.Errorf("%w: missing thumbprint", ErrInvalidRecord)
	}

	raw, err := base64.StdEncoding.DecodeString(row.RawData)
	if err != nil {
		return nil, fmt.Errorf("%w: certificate %s: invalid raw data: %v", ErrInvalidRecord, thumbprint, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: certificate %s: empty raw data", ErrInvalidRecord, thumbprint)
	}

	cert := &Certificate{
		Thumbprint:    thumbprint,
		RawData:       raw,
		HasPrivateKey: row.HasPrivateKey,
		SAN:           san.Parse(row.San),
	}
	if row.HasPrivateKey {
		cert.CryptoProvider = row.CSP
	}
	return cert, nil
}

// FindByThumbprint returns the certificate with the given thumbprint, or nil.
// The comparison is exact.
func FindByThumbprint(certs []*Certificate, thumbprint string) *Certificate {
	for _, c := range certs {
		if c.Thumbprint == thumbprint {
			return c
		}
	}
	return nil
}
