package cli

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/remiblancher/wincert/internal/certstore"
)

// ExpiringWindow is how close to NotAfter a certificate is shown as expiring.
const ExpiringWindow = 30 * 24 * time.Hour

// FirstOrEmpty returns the first element of a slice or an empty string.
func FirstOrEmpty(s []string) string {
	if len(s) > 0 {
		return s[0]
	}
	return ""
}

// OrDash returns s, or "-" when s is empty.
func OrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Truncate shortens s to n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n || n < 4 {
		return s
	}
	return string(r[:n-3]) + "..."
}

// LoadMaterialFromPath reads a certificate file for import.
func LoadMaterialFromPath(path, password string) (*certstore.Material, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}
	m, err := certstore.LoadMaterial(data, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// WriteCertPEM writes a certificate as PEM to a writer.
func WriteCertPEM(w io.Writer, cert *x509.Certificate) error {
	return pem.Encode(w, &pem.Block{
		Type:  "CERTIFICATE",
		Bytes: cert.Raw,
	})
}

// CertStatus classifies a certificate by validity period at now.
func CertStatus(cert *x509.Certificate, now time.Time) string {
	switch {
	case now.After(cert.NotAfter):
		return "expired"
	case now.Add(ExpiringWindow).After(cert.NotAfter):
		return "expiring"
	default:
		return "valid"
	}
}

// SubjectCN returns the subject common name, or the full subject.
func SubjectCN(cert *x509.Certificate) string {
	if cert.Subject.CommonName != "" {
		return cert.Subject.CommonName
	}
	return strings.TrimSpace(cert.Subject.String())
}
