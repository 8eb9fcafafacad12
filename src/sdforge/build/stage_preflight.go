package build

import (
	"context"
	"fmt"

	"github.com/sdforge/sdforge/src/sdforge/setup"
)

// PreflightStage validates the host environment before anything is
// downloaded, built or written.
type PreflightStage struct{}

// NewPreflightStage creates a new preflight stage
func NewPreflightStage() *PreflightStage {
	return &PreflightStage{}
}

// Name returns the stage name
func (s *PreflightStage) Name() StageName {
	return StagePreflight
}

// Validate checks whether this stage can run
func (s *PreflightStage) Validate(ctx context.Context, sc *StageContext) error {
	if sc.Device == "" {
		return fmt.Errorf("target device not set")
	}
	if sc.Profile == nil {
		return fmt.Errorf("board profile not set")
	}
	if sc.Runner == nil {
		return fmt.Errorf("runner not set")
	}
	return nil
}

// Execute runs every preflight check and stores the results on the context.
func (s *PreflightStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error {
	progress(0, "Checking host environment")

	checker := setup.NewChecker(sc.Runner, sc.Profile, setup.Options{
		Device:       sc.Device,
		Defconfig:    sc.Defconfig,
		OverlayDir:   sc.OverlayDir,
		WorkspaceDir: sc.WorkspaceDir,
		MountPoint:   sc.MountPoint,
		AutoInstall:  sc.AutoInstall,
		Clean:        sc.Clean,
	})

	checks, err := checker.Run(ctx)
	sc.Checks = checks
	if err != nil {
		return err
	}

	progress(100, "Host environment ready")
	return nil
}
