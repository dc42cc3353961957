package inventory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/remiblancher/wincert/internal/audit"
	"github.com/remiblancher/wincert/internal/certstore"
	"github.com/remiblancher/wincert/internal/iis"
	"github.com/remiblancher/wincert/internal/remote"
)

// Options controls a collection.
type Options struct {
	StorePath string

	// Bindings restricts the inventory to certificates bound to https
	// site bindings, decorated with the binding parameters.
	Bindings bool

	// TolerateMissingIIS treats a host without the web-server
	// administration module as a host with no bindings.
	TolerateMissingIIS bool
}

// Collector reads a store and optionally correlates it with site bindings.
type Collector struct {
	reader     *certstore.Reader
	discoverer *iis.Discoverer
	logger     *slog.Logger
	audit      audit.Writer
	now        func() time.Time
}

// NewCollector creates a Collector. A nil audit writer disables auditing.
func NewCollector(logger *slog.Logger, w audit.Writer) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if w == nil {
		w = audit.NopWriter{}
	}
	return &Collector{
		reader:     certstore.NewReader(logger),
		discoverer: iis.NewDiscoverer(logger, w),
		logger:     logger,
		audit:      w,
		now:        time.Now,
	}
}

// Collect runs the store read, then the binding discovery when requested,
// on the open session s.
func (c *Collector) Collect(ctx context.Context, s remote.Session, opts Options) (*Snapshot, error) {
	snap, err := c.collect(ctx, s, opts)

	result := audit.ResultSuccess
	reason := ""
	items := 0
	if err != nil {
		result = audit.ResultFailure
		reason = err.Error()
	} else {
		items = len(snap.Items)
	}
	event := audit.NewEvent(audit.EventInventoryRead, result).
		WithObject(audit.Object{Type: "store", Host: s.Host(), Store: opts.StorePath}).
		WithContext(audit.Context{Items: items, Reason: reason})
	if werr := c.audit.Write(event); werr != nil {
		c.logger.Error("audit write failed", "event", string(audit.EventInventoryRead), "error", werr)
	}

	return snap, err
}

func (c *Collector) collect(ctx context.Context, s remote.Session, opts Options) (*Snapshot, error) {
	certs, err := c.reader.List(ctx, s, opts.StorePath)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Host:     s.Host(),
		Store:    opts.StorePath,
		TakenAt:  c.now().UTC(),
		Bindings: opts.Bindings,
	}

	if !opts.Bindings {
		snap.Items = FromStore(certs)
		return snap, nil
	}

	bindings, err := c.discoverer.Bindings(ctx, s)
	switch {
	case err == nil:
	case opts.TolerateMissingIIS && errors.Is(err, iis.ErrBindingQueryUnavailable):
		c.logger.Warn("binding query unavailable, reporting no bound certificates", "host", s.Host(), "error", err)
		bindings = nil
	default:
		return nil, err
	}

	snap.Items = Correlate(certs, bindings)
	return snap, nil
}
