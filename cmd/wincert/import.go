package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/remiblancher/wincert/internal/certstore"
	"github.com/remiblancher/wincert/internal/cli"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a certificate into a store",
	Long: `Import a certificate file (PFX, DER or PEM) into a LocalMachine store.

The default method stages the file on the host and runs certutil; the
variant (-importpfx or -addstore, with or without -csp) follows from the
password and crypto provider. The "store" method adds the bytes directly
through the .NET X509Store API, without a staged file.

Examples:
  # PFX with its password taken from the environment
  wincert import --host web01 --file site.pfx --password-env PFX_PASSWORD

  # Into the WebHosting store with a specific provider
  wincert import --host web01 --file site.pfx --password-env PFX_PASSWORD \
      --store WebHosting --csp "Microsoft Software Key Storage Provider"

  # A CA certificate, no staged file
  wincert import --host web01 --file root.cer --store Root --method store`,
	RunE: runImport,
}

// importFlags are the import flags shared by import and deploy.
type importFlags struct {
	file        string
	password    string
	passwordEnv string
	csp         string
	store       string
	method      string
}

func (f *importFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Certificate file to import (required)")
	cmd.Flags().StringVar(&f.password, "password", "", "PFX password")
	cmd.Flags().StringVar(&f.passwordEnv, "password-env", "", "Environment variable holding the PFX password")
	cmd.Flags().StringVar(&f.csp, "csp", "", "Cryptographic service provider for the private key")
	cmd.Flags().StringVar(&f.store, "store", "", "Target store (default: the host's store)")
	cmd.Flags().StringVar(&f.method, "method", certstore.MethodCertutil, "Import method: certutil, store")
	_ = cmd.MarkFlagRequired("file")
}

// request reads the file and builds the import request.
func (f *importFlags) request() (certstore.ImportRequest, error) {
	password := f.password
	if f.passwordEnv != "" {
		v, ok := os.LookupEnv(f.passwordEnv)
		if !ok {
			return certstore.ImportRequest{}, fmt.Errorf("environment variable %s is not set", f.passwordEnv)
		}
		password = v
	}

	blob, err := os.ReadFile(f.file)
	if err != nil {
		return certstore.ImportRequest{}, fmt.Errorf("failed to read certificate file: %w", err)
	}

	return certstore.ImportRequest{
		Blob:           blob,
		Password:       password,
		CryptoProvider: f.csp,
		StorePath:      f.store,
		Method:         f.method,
		Source:         f.file,
	}, nil
}

var (
	importHost  string
	importOpts importFlags
)

func init() {
	importCmd.Flags().StringVar(&importHost, "host", "", "Host name (required)")
	importOpts.register(importCmd)
	_ = importCmd.MarkFlagRequired("host")
}

func runImport(cmd *cobra.Command, args []string) error {
	req, err := importOpts.request()
	if err != nil {
		return err
	}

	svc := newService(nil, true)
	res, err := svc.Import(cmd.Context(), importHost, req)
	if err != nil {
		return err
	}

	cli.PrintImportResult(cmd.OutOrStdout(), importHost, res.StorePath, res)
	if !res.Succeeded {
		return res.Err
	}
	return nil
}
