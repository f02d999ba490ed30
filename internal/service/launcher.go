package service

import (
	"context"
	"os/exec"
)

// Process is a started lint server process.
type Process interface {
	Pid() int
	// Wait blocks until the process exits.
	Wait() error
}

// Launcher starts external processes. It exists so lifecycle code can be
// tested without spawning real processes.
type Launcher interface {
	Start(ctx context.Context, name string, args ...string) (Process, error)
}

// ExecLauncher starts processes with os/exec.
type ExecLauncher struct{}

// Start launches name in the background. The process is not tied to ctx:
// the lint server must outlive the request that started it.
func (ExecLauncher) Start(_ context.Context, name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...) //nolint:gosec // G204: command comes from the configured install path
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}
