// Package metrics exposes Prometheus instrumentation for remote operations.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/remiblancher/wincert/internal/certstore"
	"github.com/remiblancher/wincert/internal/iis"
	"github.com/remiblancher/wincert/internal/inventory"
	"github.com/remiblancher/wincert/internal/remote"
)

const namespace = "wincert"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the collectors. All methods are no-ops on a nil *Metrics.
type Metrics struct {
	// RemoteCommands counts commands run per host, command and result.
	RemoteCommands *prometheus.CounterVec

	// RemoteCommandDuration tracks command latency per command.
	RemoteCommandDuration *prometheus.HistogramVec

	// SessionOpens counts session opens per host and result.
	SessionOpens *prometheus.CounterVec

	// Imports counts import outcomes per method, variant and result.
	Imports *prometheus.CounterVec

	// ReconciledBindings counts reconciled bindings per mode and result.
	ReconciledBindings *prometheus.CounterVec

	// InventoryItems is the item count of the last read per host and store.
	InventoryItems *prometheus.GaugeVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RemoteCommands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_commands_total",
			Help:      "Total number of remote commands run",
		}, []string{"host", "command", "result"}),

		RemoteCommandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_command_duration_seconds",
			Help:      "Duration of remote commands",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"command"}),

		SessionOpens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_opens_total",
			Help:      "Total number of remote session opens",
		}, []string{"host", "result"}),

		Imports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Total number of certificate imports",
		}, []string{"method", "variant", "result"}),

		ReconciledBindings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_bindings_total",
			Help:      "Total number of site bindings reconciled",
		}, []string{"mode", "result"}),

		InventoryItems: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inventory_items",
			Help:      "Number of items in the last inventory of a store",
		}, []string{"host", "store"}),
	}
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

// ObserveImport records an import outcome.
func (m *Metrics) ObserveImport(res *certstore.ImportResult) {
	if m == nil || res == nil {
		return
	}
	m.Imports.WithLabelValues(res.Method, res.Variant.String(), result(res.Succeeded)).Inc()
}

// ObserveReconcile records every binding of a reconciliation report.
func (m *Metrics) ObserveReconcile(report *iis.Report) {
	if m == nil || report == nil {
		return
	}
	for _, b := range report.Bindings {
		m.ReconciledBindings.WithLabelValues(report.Mode, result(b.Succeeded)).Inc()
	}
}

// ObserveInventory records the item count of a snapshot.
func (m *Metrics) ObserveInventory(snap *inventory.Snapshot) {
	if m == nil || snap == nil {
		return
	}
	m.InventoryItems.WithLabelValues(snap.Host, snap.Store).Set(float64(len(snap.Items)))
}

// Opener wraps open so every session it creates is instrumented.
func (m *Metrics) Opener(open remote.Opener) remote.Opener {
	if m == nil {
		return open
	}
	return func() remote.Session {
		return &session{Session: open(), m: m}
	}
}

// session instruments a remote.Session.
type session struct {
	remote.Session
	m *Metrics
}

func (s *session) Open(ctx context.Context) error {
	err := s.Session.Open(ctx)
	s.m.SessionOpens.WithLabelValues(s.Host(), result(err == nil)).Inc()
	return err
}

func (s *session) Run(ctx context.Context, cmd remote.Command) (*remote.Result, error) {
	start := time.Now()
	res, err := s.Session.Run(ctx, cmd)
	s.m.RemoteCommandDuration.WithLabelValues(cmd.Name).Observe(time.Since(start).Seconds())
	s.m.RemoteCommands.WithLabelValues(s.Host(), cmd.Name, result(err == nil && !res.HadErrors())).Inc()
	return res, err
}
