package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/remiblancher/wincert/internal/certstore"
	"github.com/remiblancher/wincert/internal/iis"
	"github.com/remiblancher/wincert/internal/remote"
)

// Import installs a certificate into a store of host. The returned error is
// set when the request is invalid, the host is unknown, the session could
// not be opened or the file could not be staged. Import failures are
// reported through the result.
func (s *Service) Import(ctx context.Context, host string, req certstore.ImportRequest) (*certstore.ImportResult, error) {
	switch req.Method {
	case "", certstore.MethodCertutil, certstore.MethodStoreAdd:
	default:
		return nil, fmt.Errorf("%w: unsupported import method %q", ErrInvalidRequest, req.Method)
	}
	if len(req.Blob) == 0 {
		return nil, fmt.Errorf("%w: certificate content is required", ErrInvalidRequest)
	}

	h, open, err := s.resolve(host)
	if err != nil {
		return nil, err
	}
	req.StorePath = storeOrDefault(req.StorePath, h)

	importer := certstore.NewImporter(s.logger, s.audit)
	var result *certstore.ImportResult
	err = remote.With(ctx, open, func(sess remote.Session) error {
		var err error
		result, err = importer.Import(ctx, sess, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Thumbprint == "" {
		if m, err := certstore.LoadMaterial(req.Blob, req.Password); err == nil {
			result.Thumbprint = m.Thumbprint
		}
	}
	s.metrics.ObserveImport(result)
	return result, nil
}

// Bind reconciles the target bindings of host to thumbprint. The returned
// error is only set for invalid input or an unknown host.
func (s *Service) Bind(ctx context.Context, host string, target iis.Target, thumbprint, store string) (*iis.Report, error) {
	h, open, err := s.resolve(host)
	if err != nil {
		return nil, err
	}

	reconciler := iis.NewReconciler(open, s.logger, s.audit)
	report, err := reconciler.Reconcile(ctx, target, thumbprint, storeOrDefault(store, h))
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveReconcile(report)
	return report, nil
}

// DeployResult is the outcome of an import followed by a reconciliation.
type DeployResult struct {
	Import *certstore.ImportResult

	// Report is nil when the import failed.
	Report *iis.Report
}

// Succeeded reports whether both stages succeeded.
func (d *DeployResult) Succeeded() bool {
	return d.Import != nil && d.Import.Succeeded && d.Report != nil && d.Report.Succeeded
}

// Deploy imports a certificate then binds it. thumbprint overrides the
// thumbprint derived from the certificate content; one of them is needed.
func (s *Service) Deploy(ctx context.Context, host string, req certstore.ImportRequest, target iis.Target, thumbprint string) (*DeployResult, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	if thumbprint == "" {
		if m, err := certstore.LoadMaterial(req.Blob, req.Password); err == nil {
			thumbprint = m.Thumbprint
		}
	}
	if strings.TrimSpace(thumbprint) == "" {
		return nil, fmt.Errorf("%w: certificate thumbprint could not be derived, pass it explicitly", ErrInvalidRequest)
	}

	imported, err := s.Import(ctx, host, req)
	if err != nil {
		return nil, err
	}
	result := &DeployResult{Import: imported}
	if !imported.Succeeded {
		return result, nil
	}

	result.Report, err = s.Bind(ctx, host, target, thumbprint, req.StorePath)
	if err != nil {
		return nil, err
	}
	return result, nil
}
