package main

import (
	"github.com/spf13/cobra"

	"github.com/remiblancher/wincert/internal/cli"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Import a certificate and bind it to site bindings",
	Long: `Import a certificate file into a store, then bind it like "wincert bind".

The thumbprint is read from the file; pass --thumbprint when the file cannot
be parsed locally (for example an AES-encrypted PFX). Bindings are left
untouched when the import fails.

Examples:
  wincert deploy --host web01 --file site.pfx --password-env PFX_PASSWORD \
      --site "Default Web Site" --port 443 --host-header www.example.com --sni 1

  # Renewal: replace the certificate on every binding using the old one
  wincert deploy --host web01 --file renewed.pfx --password-env PFX_PASSWORD \
      --renewal-thumbprint <old>`,
	RunE: runDeploy,
}

var (
	deployHost       string
	deployThumbprint string
	deployImport     importFlags
	deployTarget     targetFlags
)

func init() {
	deployCmd.Flags().StringVar(&deployHost, "host", "", "Host name (required)")
	deployCmd.Flags().StringVar(&deployThumbprint, "thumbprint", "", "Thumbprint of the imported certificate (default: read from the file)")
	deployImport.register(deployCmd)
	deployTarget.register(deployCmd)
	_ = deployCmd.MarkFlagRequired("host")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	req, err := deployImport.request()
	if err != nil {
		return err
	}

	svc := newService(nil, true)
	res, err := svc.Deploy(cmd.Context(), deployHost, req, deployTarget.target(), deployThumbprint)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	cli.PrintImportResult(out, deployHost, res.Import.StorePath, res.Import)
	if !res.Import.Succeeded {
		return res.Import.Err
	}

	_, _ = out.Write([]byte("\n"))
	cli.PrintReconcileReport(out, res.Report)
	if !res.Report.Succeeded {
		return errBindFailed(res.Report)
	}
	return nil
}
