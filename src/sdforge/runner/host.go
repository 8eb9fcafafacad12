package runner

import (
	"context"
	"os"
	"os/exec"
	"strings"
)

// HostRunner executes commands on the local system via os/exec.
type HostRunner struct{}

// NewHostRunner creates a runner that executes commands for real.
func NewHostRunner() *HostRunner {
	return &HostRunner{}
}

// DryRun reports whether this runner only records commands.
func (r *HostRunner) DryRun() bool {
	return false
}

// Run executes the command and logs its combined output.
func (r *HostRunner) Run(ctx context.Context, cmd Command) error {
	log.Debug("Executing command", "cmd", cmd.Line(), "dir", cmd.Dir)

	c := r.build(ctx, cmd)
	output, err := c.CombinedOutput()
	if err != nil {
		return &CommandError{Cmd: cmd.Line(), Output: string(output), Err: err}
	}

	if trimmed := strings.TrimSpace(string(output)); trimmed != "" {
		log.Debug("Command output", "cmd", cmd.Argv[0], "output", trimmed)
	}
	log.Info("Command completed", "cmd", cmd.Line())
	return nil
}

// Output executes the command and returns its standard output.
func (r *HostRunner) Output(ctx context.Context, cmd Command) (string, error) {
	log.Debug("Executing command", "cmd", cmd.Line(), "dir", cmd.Dir)

	c := r.build(ctx, cmd)
	output, err := c.Output()
	if err != nil {
		detail := ""
		if ee, ok := err.(*exec.ExitError); ok {
			detail = string(ee.Stderr)
		}
		return "", &CommandError{Cmd: cmd.Line(), Output: detail, Err: err}
	}
	return string(output), nil
}

func (r *HostRunner) build(ctx context.Context, cmd Command) *exec.Cmd {
	argv := cmd.argv()
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Dir = cmd.Dir
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	if !cmd.Sudo && len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	return c
}
