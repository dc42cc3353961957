package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/remiblancher/wincert/internal/api/router"
	"github.com/remiblancher/wincert/internal/api/server"
	"github.com/remiblancher/wincert/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the REST API server for the configured hosts.

Only hosts declared in the configuration file are reachable through the API.
Import and bind requests are rate limited per client.

Endpoints:
  GET  /health                          Liveness
  GET  /ready                           Readiness
  GET  /metrics                         Prometheus metrics
  GET  /api/openapi.yaml                OpenAPI document
  GET  /api/v1/hosts                    Configured hosts
  GET  /api/v1/hosts/{host}/inventory   Store inventory
  GET  /api/v1/hosts/{host}/bindings    Site bindings
  POST /api/v1/hosts/{host}/import      Import a certificate
  POST /api/v1/hosts/{host}/bind        Reconcile site bindings

Examples:
  wincert serve --config wincert.yaml
  wincert serve --config wincert.yaml --listen :8443 --tls-cert server.crt --tls-key server.key`,
	RunE: runServe,
}

var (
	serveListen  string
	serveTLSCert string
	serveTLSKey  string
)

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default: from config, :8080)")
	serveCmd.Flags().StringVar(&serveTLSCert, "tls-cert", "", "TLS certificate file")
	serveCmd.Flags().StringVar(&serveTLSKey, "tls-key", "", "TLS private key file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := server.FromSettings(appConfig.Server)
	if serveListen != "" {
		cfg.Address = serveListen
	}
	if serveTLSCert != "" {
		cfg.TLSCert = serveTLSCert
	}
	if serveTLSKey != "" {
		cfg.TLSKey = serveTLSKey
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc := newService(m, false)
	if len(svc.Hosts()) == 0 {
		appLogger.Warn("no hosts configured, the API will answer 404 for every host")
	}

	handler := router.New(&router.Config{
		Version:     version,
		Service:     svc,
		Logger:      appLogger,
		Gatherer:    reg,
		RateLimit:   appConfig.Server.RateLimit,
		Burst:       appConfig.Server.Burst,
		CORSOrigins: appConfig.Server.CORSOrigins,
		AuditOK:     auditOK(appConfig.AuditLog),
	})

	srv := server.New(cfg, version, handler, appLogger)
	srv.PrintEndpoints(cmd.OutOrStdout())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}

// auditOK reports whether the audit log file is still present. It is nil
// when audit logging is off.
func auditOK(path string) func() bool {
	if path == "" {
		return nil
	}
	return func() bool {
		_, err := os.Stat(path)
		return err == nil
	}
}
