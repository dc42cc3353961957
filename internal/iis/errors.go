// Package iis discovers and reconciles IIS site bindings on a remote host.
package iis

import (
	"errors"
	"fmt"
)

// BindingError is a binding operation error with host and endpoint context.
// It supports errors.Is() and errors.As().
type BindingError struct {
	Op       string // "discover", "remove", "create", "attach"
	Host     string
	Site     string
	Endpoint string // ip:port:hostheader
	Err      error
}

// Error implements the error interface.
func (e *BindingError) Error() string {
	if e.Site != "" {
		return fmt.Sprintf("iis %s [%s %s on %s]: %v", e.Op, e.Site, e.Endpoint, e.Host, e.Err)
	}
	return fmt.Sprintf("iis %s [%s]: %v", e.Op, e.Host, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *BindingError) Unwrap() error { return e.Err }

// Sentinel errors for binding operations.
var (
	// ErrBindingQueryUnavailable indicates the web-server administration
	// module is missing or the binding query failed.
	ErrBindingQueryUnavailable = errors.New("binding query unavailable")

	// ErrReconciliationFailed indicates at least one binding could not be
	// brought to the target state.
	ErrReconciliationFailed = errors.New("binding reconciliation failed")

	// ErrInvalidTarget indicates a malformed reconciliation request.
	ErrInvalidTarget = errors.New("invalid reconciliation target")
)
