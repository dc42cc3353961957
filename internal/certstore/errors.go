// Package certstore reads and writes Windows certificate stores on a remote
// host.
package certstore

import (
	"errors"
	"fmt"
)

// StoreError is a certificate store operation error with host and store
// context. It supports errors.Is() and errors.As().
type StoreError struct {
	Op    string // "list", "stage", "import", "add"
	Host  string
	Store string
	Err   error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Store != "" {
		return fmt.Sprintf("certstore %s [%s store on %s]: %v", e.Op, e.Store, e.Host, e.Err)
	}
	return fmt.Sprintf("certstore %s [%s]: %v", e.Op, e.Host, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StoreError) Unwrap() error { return e.Err }

// Sentinel errors for store operations.
var (
	// ErrInventoryUnavailable indicates the store could not be enumerated.
	ErrInventoryUnavailable = errors.New("certificate inventory unavailable")

	// ErrInvalidRecord indicates a store row could not be turned into a
	// certificate record.
	ErrInvalidRecord = errors.New("invalid certificate record")

	// ErrStageFailed indicates the certificate file could not be written to
	// the remote host.
	ErrStageFailed = errors.New("failed to stage certificate file")

	// ErrImportFailed indicates the import utility reported a failure.
	ErrImportFailed = errors.New("certificate import failed")

	// ErrUnrecognizedMaterial indicates local certificate bytes are neither
	// PEM, DER nor a readable PKCS#12 file.
	ErrUnrecognizedMaterial = errors.New("unrecognized certificate material")
)
