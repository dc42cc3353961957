package certstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/remiblancher/wincert/internal/remote"
)

// Reader enumerates certificate stores.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a Reader.
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger}
}

// List returns the certificates in the LocalMachine store named storePath.
// The store is opened read-only and closed before returning. An empty store
// yields an empty slice.
func (r *Reader) List(ctx context.Context, s remote.Session, storePath string) ([]*Certificate, error) {
	fail := func(err error) error {
		return &StoreError{Op: "list", Host: s.Host(), Store: storePath, Err: err}
	}

	if strings.TrimSpace(storePath) == "" {
		return nil, fail(fmt.Errorf("%w: store path is required", ErrInventoryUnavailable))
	}

	res, err := s.Run(ctx, remote.Command{
		Name:   CommandList,
		Script: listScript,
		Params: []remote.Param{{Name: "storePath", Value: storePath}},
	})
	if err != nil {
		return nil, fail(fmt.Errorf("%w: %w", ErrInventoryUnavailable, err))
	}
	if res.HadErrors() {
		return nil, fail(fmt.Errorf("%w: %s", ErrInventoryUnavailable, res.ErrorMessage()))
	}

	certs := make([]*Certificate, 0, len(res.Output))
	for _, line := range res.Output {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cert, err := BuildRecord(line)
		if err != nil {
			return nil, fail(errors.Join(ErrInventoryUnavailable, err))
		}
		certs = append(certs, cert)
	}

	r.logger.Info("certificate store read",
		"host", s.Host(),
		"store", storePath,
		"certificates", len(certs),
	)
	return certs, nil
}
