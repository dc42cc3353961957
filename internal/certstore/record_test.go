package certstore

import (
	"errors"
	"testing"

	"github.com/remiblancher/wincert/internal/san"
)

func TestU_BuildRecord(t *testing.T) {
	cert, _ := generateTestCert(t, "www.example.com")
	thumb := Thumbprint(cert.Raw)

	tests := []struct {
		name    string
		line    string
		wantCSP string
		wantKey bool
		wantSAN string
	}{
		{
			name:    "[Unit] BuildRecord: certificate with key",
			line:    storeLine(t, thumb, cert.Raw, true, "Microsoft Enhanced RSA and AES Cryptographic Provider", "DNS Name=www.example.com, DNS Name=example.com"),
			wantCSP: "Microsoft Enhanced RSA and AES Cryptographic Provider",
			wantKey: true,
			wantSAN: "dns=www.example.com&dns=example.com",
		},
		{
			name:    "[Unit] BuildRecord: provider cleared without key",
			line:    storeLine(t, thumb, cert.Raw, false, "Stale Provider", ""),
			wantCSP: "",
			wantKey: false,
			wantSAN: "",
		},
		{
			name:    "[Unit] BuildRecord: ip and email names",
			line:    storeLine(t, thumb, cert.Raw, false, "", "IP Address=10.0.0.1, Email=ops@example.com"),
			wantSAN: "ip=10.0.0.1&email=ops@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := BuildRecord(tt.line)
			if err != nil {
				t.Fatalf("BuildRecord() error = %v", err)
			}
			if rec.Thumbprint != thumb {
				t.Errorf("Thumbprint = %s, want %s", rec.Thumbprint, thumb)
			}
			if rec.HasPrivateKey != tt.wantKey {
				t.Errorf("HasPrivateKey = %v, want %v", rec.HasPrivateKey, tt.wantKey)
			}
			if rec.CryptoProvider != tt.wantCSP {
				t.Errorf("CryptoProvider = %q, want %q", rec.CryptoProvider, tt.wantCSP)
			}
			if rec.SAN.String() != tt.wantSAN {
				t.Errorf("SAN = %q, want %q", rec.SAN.String(), tt.wantSAN)
			}
			if rec.Base64() == "" {
				t.Error("Base64() should not be empty")
			}
			parsed, err := rec.Parse()
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if parsed.Subject.CommonName != "test" {
				t.Errorf("CommonName = %s", parsed.Subject.CommonName)
			}
		})
	}
}

func TestU_BuildRecord_KeepsThumbprintAsReported(t *testing.T) {
	cert, _ := generateTestCert(t)
	rec, err := BuildRecord(storeLine(t, " ab12cd ", cert.Raw, false, "", ""))
	if err != nil {
		t.Fatalf("BuildRecord() error = %v", err)
	}
	if rec.Thumbprint != "ab12cd" {
		t.Errorf("Thumbprint = %q, want %q", rec.Thumbprint, "ab12cd")
	}
}

func TestU_BuildRecord_Invalid(t *testing.T) {
	cert, _ := generateTestCert(t)

	tests := []struct {
		name string
		line string
	}{
		{"[Unit] BuildRecord: not JSON", "Thumbprint=AB"},
		{"[Unit] BuildRecord: missing thumbprint", storeLine(t, "", cert.Raw, false, "", "")},
		{"[Unit] BuildRecord: bad base64", `{"Thumbprint":"AB","RawData":"***"}`},
		{"[Unit] BuildRecord: empty raw data", `{"Thumbprint":"AB","RawData":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRecord(tt.line)
			if !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("BuildRecord() error = %v, want ErrInvalidRecord", err)
			}
		})
	}
}

func TestU_FindByThumbprint(t *testing.T) {
	certs := []*Certificate{
		{Thumbprint: "AAA"},
		{Thumbprint: "BBB", SAN: san.Names{{Kind: san.KindDNS, Value: "b.example.com"}}},
	}
	if got := FindByThumbprint(certs, "BBB"); got == nil || got.SAN.String() != "dns=b.example.com" {
		t.Errorf("FindByThumbprint(BBB) = %+v", got)
	}
	if got := FindByThumbprint(certs, "bbb"); got != nil {
		t.Error("FindByThumbprint() should be exact")
	}
	if got := FindByThumbprint(nil, "AAA"); got != nil {
		t.Error("FindByThumbprint(nil) should return nil")
	}
}
