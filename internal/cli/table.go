package cli

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/remiblancher/wincert/internal/certstore"
	"github.com/remiblancher/wincert/internal/iis"
	"github.com/remiblancher/wincert/internal/inventory"
)

// PrintInventory prints a snapshot in table format.
func PrintInventory(w io.Writer, snap *inventory.Snapshot, now time.Time) {
	_, _ = fmt.Fprintf(w, "Host: %s  Store: %s\n\n", snap.Host, snap.Store)

	if snap.Bindings {
		_, _ = fmt.Fprintf(w, "%-40s %-24s %-22s %-20s %-4s %s\n", "THUMBPRINT", "SITE", "BINDING", "SNI", "KEY", "STATUS")
		_, _ = fmt.Fprintf(w, "%-40s %-24s %-22s %-20s %-4s %s\n", "----------", "----", "-------", "---", "---", "------")
	} else {
		_, _ = fmt.Fprintf(w, "%-40s %-32s %-17s %-4s %s\n", "THUMBPRINT", "SUBJECT", "NOT AFTER", "KEY", "STATUS")
		_, _ = fmt.Fprintf(w, "%-40s %-32s %-17s %-4s %s\n", "----------", "-------", "---------", "---", "------")
	}

	for _, item := range snap.Items {
		cert := leaf(item)
		status := "unknown"
		subject, notAfter := "-", "-"
		if cert != nil {
			status = CertStatus(cert, now)
			subject = Truncate(SubjectCN(cert), 32)
			notAfter = cert.NotAfter.Format("2006-01-02 15:04")
		}

		if snap.Bindings {
			p := item.Parameters
			binding := p[inventory.ParamIPAddress] + ":" + p[inventory.ParamPort] + ":" + p[inventory.ParamHostName]
			_, _ = fmt.Fprintf(w, "%-40s %-24s %-22s %-20s %-4s %s\n",
				item.Alias,
				Truncate(p[inventory.ParamSiteName], 24),
				Truncate(binding, 22),
				OrDash(p[inventory.ParamSniFlag]),
				yesNo(item.PrivateKeyEntry),
				FormatStatus(status),
			)
			continue
		}
		_, _ = fmt.Fprintf(w, "%-40s %-32s %-17s %-4s %s\n",
			item.Alias,
			subject,
			notAfter,
			yesNo(item.PrivateKeyEntry),
			FormatStatus(status),
		)
	}

	_, _ = fmt.Fprintf(w, "\nTotal: %d item(s)\n", len(snap.Items))
}

// PrintBindings prints discovered bindings in table format.
func PrintBindings(w io.Writer, host string, bindings []iis.Binding) {
	_, _ = fmt.Fprintf(w, "Host: %s\n\n", host)
	_, _ = fmt.Fprintf(w, "%-24s %-8s %-30s %-40s %s\n", "SITE", "PROTOCOL", "BINDING", "THUMBPRINT", "SNI")
	_, _ = fmt.Fprintf(w, "%-24s %-8s %-30s %-40s %s\n", "----", "--------", "-------", "----------", "---")
	for _, b := range bindings {
		sni := "-"
		if b.IsHTTPS() {
			sni = OrDash(b.SNI.Label())
		}
		_, _ = fmt.Fprintf(w, "%-24s %-8s %-30s %-40s %s\n",
			Truncate(b.Site, 24),
			b.Protocol,
			Truncate(b.Information, 30),
			OrDash(b.Thumbprint),
			sni,
		)
	}
	_, _ = fmt.Fprintf(w, "\nTotal: %d binding(s)\n", len(bindings))
}

// PrintImportResult prints the outcome of an import.
func PrintImportResult(w io.Writer, host, store string, res *certstore.ImportResult) {
	status := "success"
	if !res.Succeeded {
		status = "failed"
	}
	_, _ = fmt.Fprintf(w, "Import to %s store on %s: %s\n", store, host, FormatStatus(status))
	_, _ = fmt.Fprintf(w, "  Method:    %s\n", res.Method)
	if res.Method == certstore.MethodCertutil {
		_, _ = fmt.Fprintf(w, "  Variant:   %s\n", res.Variant)
		_, _ = fmt.Fprintf(w, "  Exit code: %d\n", res.ExitCode)
	}
	if res.Thumbprint != "" {
		_, _ = fmt.Fprintf(w, "  Thumbprint: %s\n", res.Thumbprint)
	}
	if !res.Succeeded && res.Diagnostics != "" {
		_, _ = fmt.Fprintf(w, "  Output:\n")
		for _, line := range strings.Split(res.Diagnostics, "\n") {
			_, _ = fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

// PrintReconcileReport prints a reconciliation report.
func PrintReconcileReport(w io.Writer, report *iis.Report) {
	_, _ = fmt.Fprintf(w, "Reconcile %s on %s (%s mode, store %s)\n\n", report.Thumbprint, report.Host, report.Mode, report.StorePath)
	_, _ = fmt.Fprintf(w, "%-24s %-30s %-20s %-8s %s\n", "SITE", "BINDING", "SNI", "STEP", "STATUS")
	_, _ = fmt.Fprintf(w, "%-24s %-30s %-20s %-8s %s\n", "----", "-------", "---", "----", "------")
	for _, b := range report.Bindings {
		status := "ok"
		if !b.Succeeded {
			status = "failed"
		}
		_, _ = fmt.Fprintf(w, "%-24s %-30s %-20s %-8s %s\n",
			Truncate(b.Binding.Site, 24),
			Truncate(b.Binding.Information(), 30),
			OrDash(b.Binding.SNI.Label()),
			OrDash(b.Step),
			FormatStatus(status),
		)
	}
	for _, b := range report.Failed() {
		_, _ = fmt.Fprintf(w, "\n%s: %v", b.Binding.Site, b.Err)
	}
	if report.Err != nil && len(report.Failed()) == 0 {
		_, _ = fmt.Fprintf(w, "\nError: %v", report.Err)
	}
	_, _ = fmt.Fprintf(w, "\nTotal: %d binding(s), %d failed\n", len(report.Bindings), len(report.Failed()))
}

func leaf(item inventory.Item) *x509.Certificate {
	if len(item.Certificates) == 0 {
		return nil
	}
	der, err := base64.StdEncoding.DecodeString(item.Certificates[0])
	if err != nil {
		return nil
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil
	}
	return cert
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
