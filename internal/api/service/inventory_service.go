package service

import (
	"context"

	"github.com/remiblancher/wincert/internal/iis"
	"github.com/remiblancher/wincert/internal/inventory"
	"github.com/remiblancher/wincert/internal/remote"
)

// InventoryRequest selects what to inventory on a host.
type InventoryRequest struct {
	// Store defaults to the host's store.
	Store string

	// Bindings restricts the inventory to certificates bound to https
	// site bindings.
	Bindings bool

	TolerateMissingIIS bool
}

// Inventory reads a store of host.
func (s *Service) Inventory(ctx context.Context, host string, req InventoryRequest) (*inventory.Snapshot, error) {
	h, open, err := s.resolve(host)
	if err != nil {
		return nil, err
	}

	collector := inventory.NewCollector(s.logger, s.audit)
	opts := inventory.Options{
		StorePath:          storeOrDefault(req.Store, h),
		Bindings:           req.Bindings,
		TolerateMissingIIS: req.TolerateMissingIIS,
	}

	var snap *inventory.Snapshot
	err = remote.With(ctx, open, func(sess remote.Session) error {
		var err error
		snap, err = collector.Collect(ctx, sess, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveInventory(snap)
	return snap, nil
}

// Bindings returns every site binding of host, all protocols.
func (s *Service) Bindings(ctx context.Context, host string) ([]iis.Binding, error) {
	_, open, err := s.resolve(host)
	if err != nil {
		return nil, err
	}

	discoverer := iis.NewDiscoverer(s.logger, s.audit)
	var bindings []iis.Binding
	err = remote.With(ctx, open, func(sess remote.Session) error {
		var err error
		bindings, err = discoverer.Bindings(ctx, sess)
		return err
	})
	if err != nil {
		return nil, err
	}
	return bindings, nil
}
