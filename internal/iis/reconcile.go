package iis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/remiblancher/wincert/internal/audit"
	"github.com/remiblancher/wincert/internal/remote"
)

// Reconciliation modes.
const (
	ModeSingle  = "single"
	ModeRenewal = "renewal"
)

// Reconciliation steps, in execution order.
const (
	StepRemove = "remove"
	StepCreate = "create"
	StepAttach = "attach"
)

// Target selects the bindings to reconcile. Exactly one of Site and
// RenewalThumbprint must be set.
type Target struct {
	// Site is an explicit binding tuple.
	Site *SiteBinding

	// RenewalThumbprint selects every https binding currently bound to
	// this certificate.
	RenewalThumbprint string
}

// Mode returns ModeRenewal or ModeSingle.
func (t Target) Mode() string {
	if t.RenewalThumbprint != "" {
		return ModeRenewal
	}
	return ModeSingle
}

// Validate checks that exactly one target form is set.
func (t Target) Validate() error {
	hasSite := t.Site != nil
	hasRenewal := strings.TrimSpace(t.RenewalThumbprint) != ""
	switch {
	case hasSite && hasRenewal:
		return fmt.Errorf("%w: site binding and renewal thumbprint are mutually exclusive", ErrInvalidTarget)
	case !hasSite && !hasRenewal:
		return fmt.Errorf("%w: a site binding or a renewal thumbprint is required", ErrInvalidTarget)
	case hasSite:
		return t.Site.Normalize().Validate()
	}
	return nil
}

// BindingOutcome is the result of reconciling one binding.
type BindingOutcome struct {
	Binding   SiteBinding
	Succeeded bool

	// Step is the failing step, empty on success.
	Step string

	Err error
}

// Report is the result of one Reconcile call.
type Report struct {
	RunID      string
	Host       string
	Mode       string
	Thumbprint string
	StorePath  string

	// Bindings lists the bindings touched, in processing order.
	Bindings []BindingOutcome

	// Succeeded is true when every touched binding succeeded. A renewal
	// that matched no binding succeeds with an empty Bindings.
	Succeeded bool

	// Err is the whole-call failure cause, wrapping ErrReconciliationFailed.
	Err error
}

// Failed returns the outcomes that did not succeed.
func (r *Report) Failed() []BindingOutcome {
	var out []BindingOutcome
	for _, b := range r.Bindings {
		if !b.Succeeded {
			out = append(out, b)
		}
	}
	return out
}

// Reconciler brings site bindings to a target certificate.
type Reconciler struct {
	open       remote.Opener
	discoverer *Discoverer
	logger     *slog.Logger
	audit      audit.Writer
}

// NewReconciler creates a Reconciler that opens one session per call with
// open. A nil audit writer disables auditing.
func NewReconciler(open remote.Opener, logger *slog.Logger, w audit.Writer) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if w == nil {
		w = audit.NopWriter{}
	}
	return &Reconciler{
		open:       open,
		discoverer: NewDiscoverer(logger, w),
		logger:     logger,
		audit:      w,
	}
}

// Reconcile binds thumbprint from storePath to the target bindings. For each
// binding the existing entry is removed, recreated with its SNI flag and
// attached to the certificate. The returned error is only set for invalid
// input; remote failures are reported through the Report.
func (r *Reconciler) Reconcile(ctx context.Context, target Target, thumbprint, storePath string) (*Report, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(thumbprint) == "" {
		return nil, fmt.Errorf("%w: certificate thumbprint is required", ErrInvalidTarget)
	}
	if strings.TrimSpace(storePath) == "" {
		return nil, fmt.Errorf("%w: store path is required", ErrInvalidTarget)
	}

	report := &Report{
		RunID:      audit.NewRunID(),
		Mode:       target.Mode(),
		Thumbprint: thumbprint,
		StorePath:  storePath,
	}

	open := func() remote.Session {
		s := r.open()
		report.Host = s.Host()
		return s
	}
	err := remote.With(ctx, open, func(s remote.Session) error {
		bindings, err := r.targets(ctx, s, target)
		if err != nil {
			return err
		}

		for _, b := range bindings {
			outcome := r.reconcileOne(ctx, s, b, thumbprint, storePath)
			report.Bindings = append(report.Bindings, outcome)
			r.logOutcome(report, outcome)
		}
		return nil
	})

	failed := len(report.Failed())
	switch {
	case err != nil:
		report.Err = fmt.Errorf("%w: %w", ErrReconciliationFailed, err)
	case failed > 0:
		report.Err = fmt.Errorf("%w: %d of %d bindings failed", ErrReconciliationFailed, failed, len(report.Bindings))
	default:
		report.Succeeded = true
	}
	r.logCompleted(report)
	return report, nil
}

// targets resolves the bindings to process.
func (r *Reconciler) targets(ctx context.Context, s remote.Session, target Target) ([]SiteBinding, error) {
	if target.Site != nil {
		return []SiteBinding{target.Site.Normalize()}, nil
	}

	discovered, err := r.discoverer.Bindings(ctx, s)
	if err != nil {
		return nil, err
	}

	var out []SiteBinding
	for _, b := range discovered {
		if b.IsHTTPS() && strings.EqualFold(b.Thumbprint, target.RenewalThumbprint) {
			out = append(out, b.SiteBinding())
		}
	}
	r.logger.Info("renewal bindings matched",
		"host", s.Host(),
		"thumbprint", target.RenewalThumbprint,
		"matched", len(out),
		"discovered", len(discovered),
	)
	return out, nil
}

// reconcileOne runs remove, create and attach, stopping at the first
// failing step.
func (r *Reconciler) reconcileOne(ctx context.Context, s remote.Session, b SiteBinding, thumbprint, storePath string) BindingOutcome {
	tuple := []remote.Param{
		{Name: "siteName", Value: b.Site},
		{Name: "ipAddress", Value: b.IPAddress},
		{Name: "port", Value: b.Port},
		{Name: "hostHeader", Value: b.HostHeader},
		{Name: "protocol", Value: b.Protocol},
	}
	with := func(extra ...remote.Param) []remote.Param {
		return append(append([]remote.Param(nil), tuple...), extra...)
	}

	steps := []struct {
		name string
		cmd  remote.Command
	}{
		{StepRemove, remote.Command{Name: CommandRemove, Script: removeScript, Params: with()}},
		{StepCreate, remote.Command{Name: CommandCreate, Script: createScript, Params: with(
			remote.Param{Name: "sslFlags", Value: strconv.Itoa(int(b.SNI))},
		)}},
		{StepAttach, remote.Command{Name: CommandAttach, Script: attachScript, Params: with(
			remote.Param{Name: "thumbprint", Value: thumbprint},
			remote.Param{Name: "storePath", Value: storePath},
		)}},
	}

	for _, step := range steps {
		res, err := s.Run(ctx, step.cmd)
		if err == nil && res.HadErrors() {
			err = errors.New(res.ErrorMessage())
		}
		if err != nil {
			return BindingOutcome{
				Binding: b,
				Step:    step.name,
				Err: &BindingError{
					Op:       step.name,
					Host:     s.Host(),
					Site:     b.Site,
					Endpoint: b.Information(),
					Err:      fmt.Errorf("%w: %w", ErrReconciliationFailed, err),
				},
			}
		}
	}
	return BindingOutcome{Binding: b, Succeeded: true}
}

func (r *Reconciler) logOutcome(report *Report, o BindingOutcome) {
	result := audit.ResultSuccess
	reason := ""
	if o.Succeeded {
		r.logger.Info("binding reconciled",
			"host", report.Host,
			"site", o.Binding.Site,
			"binding", o.Binding.Information(),
			"sni", o.Binding.SNI.Label(),
			"thumbprint", report.Thumbprint,
		)
	} else {
		result = audit.ResultFailure
		reason = o.Err.Error()
		r.logger.Error("binding reconciliation failed",
			"host", report.Host,
			"site", o.Binding.Site,
			"binding", o.Binding.Information(),
			"step", o.Step,
			"error", o.Err,
		)
	}

	event := audit.NewEvent(audit.EventBindingReconciled, result).
		WithObject(audit.Object{
			Type:       "binding",
			Host:       report.Host,
			Store:      report.StorePath,
			Thumbprint: report.Thumbprint,
			Site:       o.Binding.Site,
			Endpoint:   o.Binding.Information(),
		}).
		WithContext(audit.Context{RunID: report.RunID, Mode: report.Mode, Step: o.Step, Reason: reason})
	if err := r.audit.Write(event); err != nil {
		r.logger.Error("audit write failed", "event", string(audit.EventBindingReconciled), "error", err)
	}
}

func (r *Reconciler) logCompleted(report *Report) {
	result := audit.ResultSuccess
	reason := ""
	if !report.Succeeded {
		result = audit.ResultFailure
		reason = report.Err.Error()
	}
	event := audit.NewEvent(audit.EventReconciliationCompleted, result).
		WithObject(audit.Object{Type: "site", Host: report.Host, Store: report.StorePath, Thumbprint: report.Thumbprint}).
		WithContext(audit.Context{RunID: report.RunID, Mode: report.Mode, Items: len(report.Bindings), Reason: reason})
	if err := r.audit.Write(event); err != nil {
		r.logger.Error("audit write failed", "event", string(audit.EventReconciliationCompleted), "error", err)
	}
}
