package runner

import "context"

// DryRunner records the commands the pipeline would execute without
// touching the system. It backs the --dry-run flag and the tests.
type DryRunner struct {
	// Recorded accumulates every command in execution order
	Recorded []Command

	// Outputs maps a program name to the canned stdout returned by Output.
	// Programs without an entry yield an empty string, which callers must
	// treat as "probe unanswered" and fall back safely.
	Outputs map[string]string
}

// NewDryRunner creates a recording runner.
func NewDryRunner() *DryRunner {
	return &DryRunner{Outputs: map[string]string{}}
}

// DryRun reports whether this runner only records commands.
func (r *DryRunner) DryRun() bool {
	return true
}

// Run records the command and logs the line that would have executed.
func (r *DryRunner) Run(ctx context.Context, cmd Command) error {
	r.Recorded = append(r.Recorded, cmd)
	log.Info("DRY RUN", "cmd", cmd.Line(), "dir", cmd.Dir)
	return nil
}

// Output records the command and returns the canned response for its program.
func (r *DryRunner) Output(ctx context.Context, cmd Command) (string, error) {
	r.Recorded = append(r.Recorded, cmd)
	log.Info("DRY RUN", "cmd", cmd.Line(), "dir", cmd.Dir)
	return r.Outputs[cmd.Argv[0]], nil
}

// Lines returns the rendered command lines in execution order.
func (r *DryRunner) Lines() []string {
	lines := make([]string, len(r.Recorded))
	for i, cmd := range r.Recorded {
		lines[i] = cmd.Line()
	}
	return lines
}
