// Package runner abstracts execution of the external tools the pipeline
// drives (git, make, sfdisk, dd, debootstrap, ...). Stages describe
// commands declaratively; the Runner decides whether to execute them on
// the host or merely record them for a dry run.
package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/sdforge/sdforge/src/common/logs"
)

// Command describes one external tool invocation.
type Command struct {
	// Argv is the program and its arguments
	Argv []string

	// Dir is the working directory, empty for the current one
	Dir string

	// Stdin is fed to the process on standard input when non-empty
	Stdin string

	// Env holds extra KEY=value pairs. With Sudo set they are passed as
	// sudo arguments so they survive the privilege boundary.
	Env []string

	// Sudo escalates the command through sudo
	Sudo bool
}

// Line renders the full command line as it would be executed.
func (c Command) Line() string {
	var parts []string
	if c.Sudo {
		parts = append(parts, "sudo")
		parts = append(parts, c.Env...)
	}
	parts = append(parts, c.Argv...)
	return strings.Join(parts, " ")
}

// argv returns the effective program and arguments, folding sudo and its
// environment assignments in when requested.
func (c Command) argv() []string {
	if !c.Sudo {
		return c.Argv
	}
	out := make([]string, 0, 1+len(c.Env)+len(c.Argv))
	out = append(out, "sudo")
	out = append(out, c.Env...)
	out = append(out, c.Argv...)
	return out
}

// Runner executes or simulates commands.
type Runner interface {
	// Run executes the command, logging its output. The returned error
	// includes the captured output of a failed process.
	Run(ctx context.Context, cmd Command) error

	// Output executes the command and returns its standard output.
	Output(ctx context.Context, cmd Command) (string, error)

	// DryRun reports whether this runner only records commands.
	DryRun() bool
}

// CommandError carries the failed command line and its captured output.
type CommandError struct {
	Cmd    string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("command %q failed: %v", e.Cmd, e.Err)
	}
	return fmt.Sprintf("command %q failed: %v: %s", e.Cmd, e.Err, strings.TrimSpace(e.Output))
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

var log = logs.NewDefault()

// SetLogger sets the logger for the runner package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}
