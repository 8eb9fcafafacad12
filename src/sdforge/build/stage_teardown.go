package build

import (
	"context"
	"path/filepath"

	"github.com/sdforge/sdforge/src/sdforge/runner"
)

// TeardownStage removes the workspace after a successful run when the
// user asked for it. Without the flag it is a no-op so repeated runs can
// reuse cloned trees and build output.
type TeardownStage struct{}

// NewTeardownStage creates a new teardown stage
func NewTeardownStage() *TeardownStage {
	return &TeardownStage{}
}

// Name returns the stage name
func (s *TeardownStage) Name() StageName {
	return StageTeardown
}

// Validate checks whether this stage can run
func (s *TeardownStage) Validate(ctx context.Context, sc *StageContext) error {
	return nil
}

// Execute removes the workspace directories when teardown was requested.
func (s *TeardownStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error {
	if !sc.Teardown {
		log.Debug("workspace kept for future runs", "dir", sc.WorkspaceDir)
		progress(100, "Workspace kept")
		return nil
	}

	for i, dir := range []string{"repositories", "build", "logs"} {
		progress(i*30, "Removing "+dir)
		cmd := runner.Command{
			Argv: []string{"rm", "-rf", filepath.Join(sc.WorkspaceDir, dir)},
		}
		if err := sc.Runner.Run(ctx, cmd); err != nil {
			return err
		}
	}

	progress(100, "Workspace removed")
	return nil
}
