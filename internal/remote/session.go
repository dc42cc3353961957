package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionClosed is returned by Run when the session is not open.
	ErrSessionClosed = errors.New("remote session is not open")

	// ErrOpenFailed is returned by With when the session could not be
	// opened.
	ErrOpenFailed = errors.New("failed to open session")
)

// Result is the output of one command.
type Result struct {
	// Output holds the script's output lines in order.
	Output []string

	// Errors holds the messages of error records raised by the script.
	Errors []string
}

// HadErrors reports whether the script raised any error record.
func (r *Result) HadErrors() bool {
	return r != nil && len(r.Errors) > 0
}

// ErrorMessage joins the error messages into one string.
func (r *Result) ErrorMessage() string {
	if r == nil {
		return ""
	}
	return strings.Join(r.Errors, "; ")
}

// Session is a connection to one host able to run commands.
//
// Run blocks until the command completes. A non-nil error means the command
// could not be executed at all; errors raised by the script itself are in
// Result.Errors.
type Session interface {
	// Host returns the host identity used in diagnostics.
	Host() string

	Open(ctx context.Context) error

	// Close releases the session. It is safe to call more than once.
	Close() error

	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Opener creates a fresh, unopened session.
type Opener func() Session

// With opens a fresh session, passes it to fn and closes it on every exit
// path.
func With(ctx context.Context, open Opener, fn func(Session) error) (err error) {
	s := open()
	if err := s.Open(ctx); err != nil {
		_ = s.Close()
		return fmt.Errorf("%w to %s: %w", ErrOpenFailed, s.Host(), err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close session to %s: %w", s.Host(), cerr)
		}
	}()

	return fn(s)
}
