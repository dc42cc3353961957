package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/remiblancher/wincert/internal/audit"
	"github.com/remiblancher/wincert/internal/config"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log management",
	Long: `Commands for managing and verifying audit logs.

The audit log records every inventory read, import and binding change.
Each event is chained to the previous one with a SHA-256 hash.

Examples:
  # Verify audit log integrity
  wincert audit verify --log /var/log/wincert/audit.jsonl

  # Show last 10 events
  wincert audit tail --log /var/log/wincert/audit.jsonl -n 10`,
	// The log is only read here; opening it for writing would fail on a
	// tampered file.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if auditLogFile != "" {
			return nil
		}
		cfg, err := config.Load(configPath, envFile)
		if err != nil {
			return err
		}
		auditLogFile = cfg.AuditLog
		if auditLogPath != "" {
			auditLogFile = auditLogPath
		}
		if auditLogFile == "" {
			return fmt.Errorf("no audit log: pass --log or --audit-log, or set audit_log in the configuration")
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify audit log integrity",
	Long: `Verify the hash chain of an audit log file.

Each event in the log contains:
  - hash_prev: SHA-256 hash of the previous event
  - hash: SHA-256 hash of the current event

The chain starts with hash_prev="sha256:genesis" for the first event.

If the chain is broken (events modified, deleted, or inserted),
this command will report the location and nature of the tampering.`,
	RunE: runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent audit events",
	Long:  `Display the most recent audit events from the log file.`,
	RunE:  runAuditTail,
}

var (
	auditLogFile  string
	auditTailNum  int
	auditShowJSON bool
)

func init() {
	auditVerifyCmd.Flags().StringVar(&auditLogFile, "log", "", "Path to audit log file (default: the configured audit log)")

	auditTailCmd.Flags().StringVar(&auditLogFile, "log", "", "Path to audit log file (default: the configured audit log)")
	auditTailCmd.Flags().IntVarP(&auditTailNum, "num", "n", 10, "Number of events to show")
	auditTailCmd.Flags().BoolVar(&auditShowJSON, "json", false, "Output as JSON")

	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Verifying audit log: %s\n\n", auditLogFile)

	count, err := audit.VerifyChain(auditLogFile)
	if err != nil {
		_, _ = fmt.Fprintf(out, "VERIFICATION FAILED\n")
		_, _ = fmt.Fprintf(out, "  Valid events: %d\n", count)
		_, _ = fmt.Fprintf(out, "  Error: %s\n", err)
		return fmt.Errorf("audit log verification failed: %w", err)
	}

	_, _ = fmt.Fprintf(out, "VERIFICATION PASSED\n")
	_, _ = fmt.Fprintf(out, "  Total events: %d\n", count)
	_, _ = fmt.Fprintf(out, "  Hash chain: VALID\n")
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	f, err := os.Open(auditLogFile)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(lines) == 0 {
		_, _ = fmt.Fprintln(out, "Audit log is empty")
		return nil
	}

	if len(lines) > auditTailNum {
		lines = lines[len(lines)-auditTailNum:]
	}

	if auditShowJSON {
		_, _ = fmt.Fprintln(out, "[")
		for i, line := range lines {
			if i > 0 {
				_, _ = fmt.Fprintln(out, ",")
			}
			_, _ = fmt.Fprint(out, line)
		}
		_, _ = fmt.Fprintln(out, "\n]")
		return nil
	}

	for _, line := range lines {
		var event audit.Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			_, _ = fmt.Fprintf(out, "  [ERROR] %s\n", err)
			continue
		}
		printEvent(out, &event)
	}
	return nil
}

func printEvent(w io.Writer, e *audit.Event) {
	resultIcon := "✓"
	if e.Result == audit.ResultFailure {
		resultIcon = "✗"
	}

	_, _ = fmt.Fprintf(w, "%s %s %-26s %s", resultIcon, e.Timestamp, e.EventType, e.Object.Host)
	if e.Object.Store != "" {
		_, _ = fmt.Fprintf(w, " store=%s", e.Object.Store)
	}
	if e.Object.Site != "" {
		_, _ = fmt.Fprintf(w, " site=%q", e.Object.Site)
	}
	if e.Object.Endpoint != "" {
		_, _ = fmt.Fprintf(w, " binding=%s", e.Object.Endpoint)
	}
	if e.Object.Thumbprint != "" {
		_, _ = fmt.Fprintf(w, " thumbprint=%s", e.Object.Thumbprint)
	}
	_, _ = fmt.Fprintln(w)

	if e.Context.Method != "" {
		_, _ = fmt.Fprintf(w, "    method=%s variant=%s exit=%d\n", e.Context.Method, e.Context.Variant, e.Context.ExitCode)
	}
	if e.Context.Mode != "" {
		_, _ = fmt.Fprintf(w, "    mode=%s\n", e.Context.Mode)
	}
	if e.Context.Step != "" {
		_, _ = fmt.Fprintf(w, "    step=%s\n", e.Context.Step)
	}
	if e.Context.Reason != "" {
		_, _ = fmt.Fprintf(w, "    reason: %s\n", e.Context.Reason)
	}
	if e.Context.RunID != "" {
		_, _ = fmt.Fprintf(w, "    run: %s\n", e.Context.RunID)
	}
}
