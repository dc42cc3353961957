package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const defaultPowerShell = "powershell.exe"

// LocalSession runs commands in a child PowerShell process on this machine.
type LocalSession struct {
	target Target
	logger *slog.Logger

	mu     sync.Mutex
	binary string
}

var _ Session = (*LocalSession)(nil)

func newLocalSession(t Target, logger *slog.Logger) *LocalSession {
	return &LocalSession{target: t, logger: logger}
}

// Host returns the configured machine name.
func (s *LocalSession) Host() string {
	return s.target.HostName()
}

// Open resolves the PowerShell executable.
func (s *LocalSession) Open(ctx context.Context) error {
	name := s.target.PowerShell
	if name == "" {
		name = defaultPowerShell
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("powershell executable %q not found: %w", name, err)
	}

	s.mu.Lock()
	s.binary = path
	s.mu.Unlock()
	return nil
}

// Close forgets the resolved executable.
func (s *LocalSession) Close() error {
	s.mu.Lock()
	s.binary = ""
	s.mu.Unlock()
	return nil
}

// Run executes cmd in a new PowerShell process, feeding the rendered
// program on stdin.
func (s *LocalSession) Run(ctx context.Context, cmd Command) (*Result, error) {
	s.mu.Lock()
	binary := s.binary
	s.mu.Unlock()
	if binary == "" {
		return nil, ErrSessionClosed
	}

	script, err := Render(cmd)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer
	proc := exec.CommandContext(ctx, binary,
		"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass",
		"-Command", bootstrapScript,
	)
	proc.Stdin = strings.NewReader(script)
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	start := time.Now()
	if err := proc.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run %s locally: %w", cmd.Name, err)
		}
	}

	res := ParseOutput(stdout.String())
	if msg := stderrMessage(stderr.String()); msg != "" {
		res.Errors = append(res.Errors, msg)
	}

	s.logger.Debug("local command finished",
		"command", cmd.Name,
		"lines", len(res.Output),
		"errors", len(res.Errors),
		"duration", time.Since(start),
	)
	return res, nil
}
