// Command wincert inventories certificate stores and reconciles IIS site
// bindings on Windows hosts.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remiblancher/wincert/internal/api/service"
	"github.com/remiblancher/wincert/internal/audit"
	"github.com/remiblancher/wincert/internal/config"
	"github.com/remiblancher/wincert/internal/metrics"
)

// Build-time variables (injected by GoReleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	configPath   string
	envFile      string
	auditLogPath string
	logLevel     string
	logFormat    string
)

// Runtime state built by the root command.
var (
	appConfig   *config.Config
	appLogger   *slog.Logger
	auditWriter audit.Writer = audit.NopWriter{}

	// sessionOpener overrides how sessions are created; nil uses the
	// host's WinRM or local target.
	sessionOpener service.OpenerFunc
)

func main() {
	err := rootCmd.Execute()
	// PersistentPostRunE is skipped when a command fails.
	_ = auditWriter.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wincert",
	Short: "Certificate inventory and IIS binding reconciliation for Windows hosts",
	Long: `wincert reads LocalMachine certificate stores on Windows hosts over WinRM
(or a local PowerShell process), imports certificates with certutil, and binds
them to IIS https site bindings.

Hosts are declared in a YAML configuration file; secrets come from a .env file
or WINCERT_* environment variables. Any host name may also be given directly,
it is then reached with default settings.

Examples:
  # Inventory the personal store of a host
  wincert inventory --host web01

  # Inventory only certificates bound to https sites, as YAML
  wincert inventory --host web01 --bindings --format yaml

  # Import a PFX and bind it to a site
  wincert deploy --host web01 --file site.pfx --password-env PFX_PASSWORD \
      --site "Default Web Site" --port 443 --host-header www.example.com --sni 1

  # Rebind every site using an expiring certificate
  wincert bind --host web01 --renewal-thumbprint <old> --thumbprint <new>

  # Run the REST API
  wincert serve --config wincert.yaml`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath, envFile)
		if err != nil {
			return err
		}

		// Flags override the file and the environment.
		if auditLogPath != "" {
			cfg.AuditLog = auditLogPath
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		appConfig = cfg
		appLogger = newLogger(cmd.ErrOrStderr(), cfg.Log)

		// Initialize audit logging
		auditWriter = audit.NopWriter{}
		if cfg.AuditLog != "" {
			w, err := audit.NewFileWriter(cfg.AuditLog)
			if err != nil {
				return fmt.Errorf("failed to initialize audit log: %w", err)
			}
			auditWriter = w
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		// Close audit log
		return auditWriter.Close()
	},
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file (default: ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&auditLogPath, "audit-log", "",
		"Path to audit log file (or set WINCERT_AUDIT_LOG env var)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text, json")

	rootCmd.AddCommand(inventoryCmd)
	rootCmd.AddCommand(bindingsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(bindCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(auditCmd)
}

// newLogger builds the technical logger. Logs go to w so that command
// output on stdout stays machine-readable.
func newLogger(w io.Writer, c config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newService builds the service used by the host commands. Ad-hoc host
// names are accepted on the command line.
func newService(m *metrics.Metrics, adHoc bool) *service.Service {
	return service.New(appConfig, service.Options{
		Logger:     appLogger,
		Audit:      auditWriter,
		Metrics:    m,
		Opener:     sessionOpener,
		AdHocHosts: adHoc,
	})
}
