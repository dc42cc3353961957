package certstore

import (
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Material formats.
const (
	FormatPEM    = "pem"
	FormatDER    = "der"
	FormatPKCS12 = "pkcs12"
)

// Material is local certificate content about to be imported.
type Material struct {
	// Data is the content sent to the host, unchanged.
	Data []byte

	Format string

	// Leaf is the end-entity certificate.
	Leaf *x509.Certificate

	// HasPrivateKey is true when the content carries a key.
	HasPrivateKey bool

	// Thumbprint is the Windows thumbprint of Leaf.
	Thumbprint string
}

// Thumbprint returns the Windows thumbprint of a DER certificate: the
// upper-case hex SHA-1 digest.
func Thumbprint(der []byte) string {
	sum := sha1.Sum(der)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// LoadMaterial recognizes PEM, DER and PKCS#12 content and identifies the
// leaf certificate. password is only used for PKCS#12; the PFX may carry
// its chain, the leaf is the certificate matching the key.
func LoadMaterial(data []byte, password string) (*Material, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty content", ErrUnrecognizedMaterial)
	}

	if m, ok := loadPEM(data); ok {
		return m, nil
	}

	if cert, err := x509.ParseCertificate(data); err == nil {
		return &Material{Data: data, Format: FormatDER, Leaf: cert, Thumbprint: Thumbprint(cert.Raw)}, nil
	}

	key, cert, _, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognizedMaterial, err)
	}
	return &Material{
		Data:          data,
		Format:        FormatPKCS12,
		Leaf:          cert,
		HasPrivateKey: key != nil,
		Thumbprint:    Thumbprint(cert.Raw),
	}, nil
}

func loadPEM(data []byte) (*Material, bool) {
	var leaf *x509.Certificate
	hasKey := false
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch {
		case block.Type == "CERTIFICATE" && leaf == nil:
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, false
			}
			leaf = cert
		case strings.HasSuffix(block.Type, "PRIVATE KEY"):
			hasKey = true
		}
	}
	if leaf == nil {
		return nil, false
	}
	return &Material{
		Data:          data,
		Format:        FormatPEM,
		Leaf:          leaf,
		HasPrivateKey: hasKey,
		Thumbprint:    Thumbprint(leaf.Raw),
	}, true
}
