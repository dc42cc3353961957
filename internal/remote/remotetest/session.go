// Package remotetest provides a scriptable in-memory remote.Session.
package remotetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/remiblancher/wincert/internal/remote"
)

// Handler answers one command.
type Handler func(cmd remote.Command) (*remote.Result, error)

// Session is a fake remote.Session dispatching commands by name.
type Session struct {
	HostName string
	Handlers map[string]Handler

	// OpenErr, if set, is returned by Open.
	OpenErr error

	mu     sync.Mutex
	open   bool
	Opens  int
	Closes int
	Calls  []remote.Command
}

var _ remote.Session = (*Session)(nil)

// New returns a fake session for host with no handlers.
func New(host string) *Session {
	return &Session{HostName: host, Handlers: make(map[string]Handler)}
}

// Handle registers h for commands named name and returns s.
func (s *Session) Handle(name string, h Handler) *Session {
	s.Handlers[name] = h
	return s
}

func (s *Session) Host() string { return s.HostName }

func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Opens++
	if s.OpenErr != nil {
		return s.OpenErr
	}
	s.open = true
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closes++
	s.open = false
	return nil
}

// IsOpen reports whether the session is currently open.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Session) Run(ctx context.Context, cmd remote.Command) (*remote.Result, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil, remote.ErrSessionClosed
	}
	s.Calls = append(s.Calls, cmd)
	h, ok := s.Handlers[cmd.Name]
	s.mu.Unlock()

	if _, err := remote.Render(cmd); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("remotetest: no handler for command %q", cmd.Name)
	}
	return h(cmd)
}

// CallNames returns the names of the commands run so far.
func (s *Session) CallNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.Calls))
	for i, c := range s.Calls {
		names[i] = c.Name
	}
	return names
}

// CallsNamed returns the commands run with the given name.
func (s *Session) CallsNamed(name string) []remote.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []remote.Command
	for _, c := range s.Calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Opener returns an Opener that always hands out s.
func (s *Session) Opener() remote.Opener {
	return func() remote.Session { return s }
}

// Lines answers with the given output lines.
func Lines(lines ...string) Handler {
	return func(remote.Command) (*remote.Result, error) {
		return &remote.Result{Output: lines}, nil
	}
}

// Errors answers with the given error records and no output.
func Errors(msgs ...string) Handler {
	return func(remote.Command) (*remote.Result, error) {
		return &remote.Result{Errors: msgs}, nil
	}
}

// Fail answers with a transport error.
func Fail(err error) Handler {
	return func(remote.Command) (*remote.Result, error) {
		return nil, err
	}
}
