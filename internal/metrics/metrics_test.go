package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/remiblancher/wincert/internal/certstore"
	"github.com/remiblancher/wincert/internal/iis"
	"github.com/remiblancher/wincert/internal/inventory"
	"github.com/remiblancher/wincert/internal/remote"
	"github.com/remiblancher/wincert/internal/remote/remotetest"
)

func TestU_Opener_Instruments(t *testing.T) {
	m := New(prometheus.NewRegistry())
	fake := remotetest.New("web01").
		Handle("ok", remotetest.Lines("x")).
		Handle("scripterr", remotetest.Errors("boom")).
		Handle("transport", remotetest.Fail(errors.New("reset")))

	err := remote.With(context.Background(), m.Opener(fake.Opener()), func(s remote.Session) error {
		for _, name := range []string{"ok", "ok", "scripterr", "transport"} {
			_, _ = s.Run(context.Background(), remote.Command{Name: name})
		}
		return nil
	})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}

	tests := []struct {
		command, result string
		want            float64
	}{
		{"ok", ResultSuccess, 2},
		{"scripterr", ResultFailure, 1},
		{"transport", ResultFailure, 1},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(m.RemoteCommands.WithLabelValues("web01", tt.command, tt.result))
		if got != tt.want {
			t.Errorf("remote_commands_total{%s,%s} = %v, want %v", tt.command, tt.result, got, tt.want)
		}
	}
	if got := testutil.ToFloat64(m.SessionOpens.WithLabelValues("web01", ResultSuccess)); got != 1 {
		t.Errorf("session_opens_total = %v, want 1", got)
	}
	if fake.Closes != 1 {
		t.Errorf("Closes = %d, want 1", fake.Closes)
	}
}

func TestU_Opener_OpenFailure(t *testing.T) {
	m := New(prometheus.NewRegistry())
	fake := remotetest.New("web01")
	fake.OpenErr = errors.New("denied")

	_ = remote.With(context.Background(), m.Opener(fake.Opener()), func(remote.Session) error { return nil })

	if got := testutil.ToFloat64(m.SessionOpens.WithLabelValues("web01", ResultFailure)); got != 1 {
		t.Errorf("session_opens_total{failure} = %v, want 1", got)
	}
}

func TestU_Observe(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveImport(&certstore.ImportResult{Method: certstore.MethodCertutil, Variant: certstore.VariantImportPFX, Succeeded: true})
	m.ObserveImport(&certstore.ImportResult{Method: certstore.MethodCertutil, Variant: certstore.VariantImportPFX})
	if got := testutil.ToFloat64(m.Imports.WithLabelValues("certutil", "importpfx", ResultSuccess)); got != 1 {
		t.Errorf("imports_total{success} = %v, want 1", got)
	}

	m.ObserveReconcile(&iis.Report{Mode: iis.ModeRenewal, Bindings: []iis.BindingOutcome{{Succeeded: true}, {Succeeded: true}, {}}})
	if got := testutil.ToFloat64(m.ReconciledBindings.WithLabelValues(iis.ModeRenewal, ResultSuccess)); got != 2 {
		t.Errorf("reconciled_bindings_total{success} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ReconciledBindings.WithLabelValues(iis.ModeRenewal, ResultFailure)); got != 1 {
		t.Errorf("reconciled_bindings_total{failure} = %v, want 1", got)
	}

	m.ObserveInventory(&inventory.Snapshot{Host: "web01", Store: "My", Items: make([]inventory.Item, 3)})
	if got := testutil.ToFloat64(m.InventoryItems.WithLabelValues("web01", "My")); got != 3 {
		t.Errorf("inventory_items = %v, want 3", got)
	}
}

func TestU_NilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveImport(&certstore.ImportResult{})
	m.ObserveReconcile(&iis.Report{})
	m.ObserveInventory(&inventory.Snapshot{})

	fake := remotetest.New("web01")
	if s := m.Opener(fake.Opener())(); s != remote.Session(fake) {
		t.Error("nil Metrics must return the opener unchanged")
	}
}
