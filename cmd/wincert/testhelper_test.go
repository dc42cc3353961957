package main

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/remiblancher/wincert/internal/audit"
	"github.com/remiblancher/wincert/internal/certstore"
	"github.com/remiblancher/wincert/internal/config"
	"github.com/remiblancher/wincert/internal/iis"
	"github.com/remiblancher/wincert/internal/remote"
	"github.com/remiblancher/wincert/internal/remote/remotetest"
)

// executeCommand executes a Cobra command with the given args and returns output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err = root.Execute()
	_ = auditWriter.Close()
	return buf.String(), err
}

// testContext holds test resources.
type testContext struct {
	t       *testing.T
	tempDir string
}

// newTestContext creates a new test context with a temp directory and
// resets every command flag.
func newTestContext(t *testing.T) *testContext {
	t.Helper()
	resetFlags()
	t.Cleanup(func() { sessionOpener = nil })
	return &testContext{t: t, tempDir: t.TempDir()}
}

// path returns a path within the temp directory.
func (tc *testContext) path(name string) string {
	return filepath.Join(tc.tempDir, name)
}

// writeFile writes content to a file in the temp directory.
func (tc *testContext) writeFile(name string, content []byte) string {
	tc.t.Helper()
	path := tc.path(name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		tc.t.Fatalf("Failed to write file %s: %v", name, err)
	}
	return path
}

// fakeHost routes every session to s and records the host names opened.
func (tc *testContext) fakeHost(s *remotetest.Session) *[]string {
	var opened []string
	sessionOpener = func(h config.HostConfig) remote.Opener {
		opened = append(opened, h.Name)
		return s.Opener()
	}
	return &opened
}

// resetFlags resets all command flags to their default values.
func resetFlags() {
	configPath, envFile, auditLogPath, logLevel, logFormat = "", "", "", "", ""
	auditWriter = audit.NopWriter{}

	invHost, invStore, invFormat = "", "", "table"
	invBindings, invTolerateMissingIIS = false, false
	bindingsHost, bindingsHTTPSOnly = "", false

	importHost = ""
	importOpts = importFlags{method: certstore.MethodCertutil}

	bindHost, bindThumbprint, bindStore = "", "", ""
	bindTarget = defaultTargetFlags()

	deployHost, deployThumbprint = "", ""
	deployImport = importFlags{method: certstore.MethodCertutil}
	deployTarget = defaultTargetFlags()

	serveListen, serveTLSCert, serveTLSKey = "", "", ""

	auditLogFile, auditTailNum, auditShowJSON = "", 10, false
}

func defaultTargetFlags() targetFlags {
	return targetFlags{ip: "*", port: "443", protocol: iis.ProtocolHTTPS}
}

// generateTestCert returns a self-signed certificate as DER and PEM.
func generateTestCert(t *testing.T, dnsNames ...string) (der, pemData []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "www.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(90 * 24 * time.Hour),
		DNSNames:     dnsNames,
	}
	der, err = x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	return der, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

// storeLine builds one line of the store listing output.
func storeLine(t *testing.T, der []byte, hasKey bool, sanText string) string {
	t.Helper()
	return jsonLine(t, map[string]any{
		"Thumbprint":    certstore.Thumbprint(der),
		"HasPrivateKey": hasKey,
		"RawData":       base64.StdEncoding.EncodeToString(der),
		"CSP":           "",
		"San":           sanText,
	})
}

// bindingLine builds one line of the binding discovery output.
func bindingLine(t *testing.T, site, protocol, info, thumb string, flags int) string {
	t.Helper()
	return jsonLine(t, map[string]any{
		"Site":        site,
		"Protocol":    protocol,
		"Information": info,
		"Thumbprint":  thumb,
		"SslFlags":    flags,
	})
}

func jsonLine(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	return string(data)
}

// assertNoError fails the test if err is not nil.
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertError fails the test if err is nil.
func assertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// assertOutputContains fails the test if output does not contain want.
func assertOutputContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Errorf("output does not contain %q:\n%s", want, output)
	}
}
