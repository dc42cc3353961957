package iis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/remiblancher/wincert/internal/audit"
	"github.com/remiblancher/wincert/internal/remote"
)

// Discoverer enumerates the bindings of every site on a host.
type Discoverer struct {
	logger *slog.Logger
	audit  audit.Writer
}

// NewDiscoverer creates a Discoverer. A nil audit writer disables auditing.
func NewDiscoverer(logger *slog.Logger, w audit.Writer) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	if w == nil {
		w = audit.NopWriter{}
	}
	return &Discoverer{logger: logger, audit: w}
}

// bindingRow is the JSON shape emitted by discoverScript.
type bindingRow struct {
	Site        string `json:"Site"`
	Protocol    string `json:"Protocol"`
	Information string `json:"Information"`
	Thumbprint  string `json:"Thumbprint"`
	SslFlags    int    `json:"SslFlags"`
}

// Bindings returns every binding of every site, all protocols, in the order
// the web server reports them. A host without the administration module
// yields ErrBindingQueryUnavailable, never an empty slice.
func (d *Discoverer) Bindings(ctx context.Context, s remote.Session) ([]Binding, error) {
	bindings, err := d.discover(ctx, s)

	result := audit.ResultSuccess
	reason := ""
	if err != nil {
		result = audit.ResultFailure
		reason = err.Error()
	}
	event := audit.NewEvent(audit.EventBindingsDiscovered, result).
		WithObject(audit.Object{Type: "site", Host: s.Host()}).
		WithContext(audit.Context{Items: len(bindings), Reason: reason})
	if werr := d.audit.Write(event); werr != nil {
		d.logger.Error("audit write failed", "event", string(audit.EventBindingsDiscovered), "error", werr)
	}

	return bindings, err
}

func (d *Discoverer) discover(ctx context.Context, s remote.Session) ([]Binding, error) {
	fail := func(err error) error {
		return &BindingError{Op: "discover", Host: s.Host(), Err: err}
	}

	res, err := s.Run(ctx, remote.Command{Name: CommandDiscover, Script: discoverScript})
	if err != nil {
		return nil, fail(fmt.Errorf("%w: %w", ErrBindingQueryUnavailable, err))
	}
	if res.HadErrors() {
		return nil, fail(fmt.Errorf("%w: %s", ErrBindingQueryUnavailable, res.ErrorMessage()))
	}

	bindings := make([]Binding, 0, len(res.Output))
	for _, line := range res.Output {
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case moduleMissingMarker:
			return nil, fail(fmt.Errorf("%w: WebAdministration module is not installed", ErrBindingQueryUnavailable))
		}

		var row bindingRow
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fail(fmt.Errorf("%w: invalid binding row: %v", ErrBindingQueryUnavailable, err))
		}
		bindings = append(bindings, NewBinding(row.Site, row.Protocol, row.Information, strings.TrimSpace(row.Thumbprint), SNIMode(row.SslFlags)))
	}

	d.logger.Info("site bindings discovered", "host", s.Host(), "bindings", len(bindings))
	return bindings, nil
}

// HTTPS returns the https bindings of bindings, order preserved.
func HTTPS(bindings []Binding) []Binding {
	var out []Binding
	for _, b := range bindings {
		if b.IsHTTPS() {
			out = append(out, b)
		}
	}
	return out
}
