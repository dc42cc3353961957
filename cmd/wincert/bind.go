package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/remiblancher/wincert/internal/cli"
	"github.com/remiblancher/wincert/internal/iis"
)

var bindCmd = &cobra.Command{
	Use:   "bind",
	Short: "Bind a certificate to site bindings",
	Long: `Bind a certificate already present in a store to IIS site bindings.

Two modes:
  explicit  --site/--port (and optionally --ip, --host-header, --sni) name one
            binding, which is removed, recreated with its SNI flag and attached
            to the certificate.
  renewal   --renewal-thumbprint selects every https binding currently bound to
            that certificate; each keeps its own endpoint and SNI flag.

SNI flags: 0 (no SNI), 1 (SNI), 2 (central store), 3 (central store + SNI).

Examples:
  wincert bind --host web01 --thumbprint <thumb> --site "Default Web Site" --port 443
  wincert bind --host web01 --thumbprint <new> --renewal-thumbprint <old>`,
	RunE: runBind,
}

// targetFlags are the binding selection flags shared by bind and deploy.
type targetFlags struct {
	site       string
	ip         string
	port       string
	hostHeader string
	protocol   string
	sni        int
	renewal    string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.site, "site", "", "Site name (explicit mode)")
	cmd.Flags().StringVar(&f.ip, "ip", "*", "Binding IP address (explicit mode)")
	cmd.Flags().StringVar(&f.port, "port", "443", "Binding port (explicit mode)")
	cmd.Flags().StringVar(&f.hostHeader, "host-header", "", "Binding host header (explicit mode)")
	cmd.Flags().StringVar(&f.protocol, "protocol", iis.ProtocolHTTPS, "Binding protocol (explicit mode)")
	cmd.Flags().IntVar(&f.sni, "sni", 0, "SNI flag 0-3 (explicit mode)")
	cmd.Flags().StringVar(&f.renewal, "renewal-thumbprint", "", "Rebind every https binding using this certificate")
}

func (f *targetFlags) target() iis.Target {
	t := iis.Target{RenewalThumbprint: f.renewal}
	if f.site != "" {
		t.Site = &iis.SiteBinding{
			Site:       f.site,
			IPAddress:  f.ip,
			Port:       f.port,
			HostHeader: f.hostHeader,
			Protocol:   f.protocol,
			SNI:        iis.SNIMode(f.sni),
		}
	}
	return t
}

var (
	bindHost       string
	bindThumbprint string
	bindStore      string
	bindTarget     targetFlags
)

func init() {
	bindCmd.Flags().StringVar(&bindHost, "host", "", "Host name (required)")
	bindCmd.Flags().StringVar(&bindThumbprint, "thumbprint", "", "Thumbprint of the certificate to attach (required)")
	bindCmd.Flags().StringVar(&bindStore, "store", "", "Store holding the certificate (default: the host's store)")
	bindTarget.register(bindCmd)
	_ = bindCmd.MarkFlagRequired("host")
	_ = bindCmd.MarkFlagRequired("thumbprint")
}

func runBind(cmd *cobra.Command, args []string) error {
	svc := newService(nil, true)
	report, err := svc.Bind(cmd.Context(), bindHost, bindTarget.target(), bindThumbprint, bindStore)
	if err != nil {
		return err
	}

	cli.PrintReconcileReport(cmd.OutOrStdout(), report)
	if !report.Succeeded {
		return errBindFailed(report)
	}
	return nil
}

func errBindFailed(report *iis.Report) error {
	if report.Err != nil {
		return report.Err
	}
	return errors.New("binding reconciliation failed")
}
