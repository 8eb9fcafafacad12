package build

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sdforge/sdforge/src/common/errors"
	"github.com/sdforge/sdforge/src/common/paths"
	"github.com/sdforge/sdforge/src/sdforge/runner"
)

// KernelStage configures and builds the mainline kernel: Image, device
// trees and modules, cross-compiled for the board's architecture.
type KernelStage struct{}

// NewKernelStage creates a new kernel stage
func NewKernelStage() *KernelStage {
	return &KernelStage{}
}

// Name returns the stage name
func (s *KernelStage) Name() StageName {
	return StageKernel
}

// Validate checks whether this stage can run
func (s *KernelStage) Validate(ctx context.Context, sc *StageContext) error {
	if sc.Runner.DryRun() {
		return nil
	}
	treeDir := filepath.Join(sc.ReposDir, "linux")
	if !paths.IsDir(treeDir) {
		return fmt.Errorf("kernel checkout missing at %s - fetch stage must run first", treeDir)
	}
	defconfig := filepath.Join(sc.OverlayDir, sc.EffectiveDefconfig())
	if !paths.IsFile(defconfig) {
		return errors.ErrDefconfigNotFound.WithMessagef("defconfig %s not found in %s", sc.EffectiveDefconfig(), sc.OverlayDir)
	}
	return nil
}

// imagePath returns the built kernel image inside the tree.
func (s *KernelStage) imagePath(sc *StageContext) string {
	return filepath.Join(sc.ReposDir, "linux", sc.Profile.KernelImagePath)
}

// dtbPath returns the built board device tree inside the tree.
func (s *KernelStage) dtbPath(sc *StageContext) string {
	return filepath.Join(sc.ReposDir, "linux", sc.Profile.DTBPath)
}

// Execute installs the board defconfig into the tree and builds the
// kernel image, device trees and modules.
func (s *KernelStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error {
	treeDir := filepath.Join(sc.ReposDir, "linux")
	defconfig := sc.EffectiveDefconfig()

	if paths.Exists(s.imagePath(sc)) && paths.Exists(s.dtbPath(sc)) {
		log.Info("kernel artifacts already built, skipping", "image", s.imagePath(sc))
		progress(100, "Kernel artifacts ready")
		return nil
	}

	progress(0, "Installing board defconfig")
	copyCfg := runner.Command{
		Argv: []string{
			"cp",
			filepath.Join(sc.OverlayDir, defconfig),
			filepath.Join(treeDir, "arch", sc.Profile.KernelArch, "configs", defconfig),
		},
	}
	if err := sc.Runner.Run(ctx, copyCfg); err != nil {
		return errors.ErrKernelBuild.WithMessage("failed to install defconfig into kernel tree").WithCause(err)
	}

	env := MakeEnv(sc.Profile)
	jobs := JobsFlag(sc.Nproc)

	steps := []struct {
		label  string
		pct    int
		target []string
	}{
		{"Configuring kernel", 10, []string{defconfig}},
		{"Building kernel image", 25, []string{"Image", jobs}},
		{"Building device trees", 70, []string{"dtbs", jobs}},
		{"Building modules", 80, []string{"modules", jobs}},
	}

	for _, step := range steps {
		progress(step.pct, step.label)
		cmd := runner.Command{
			Argv: append([]string{"make"}, step.target...),
			Dir:  treeDir,
			Env:  env,
		}
		if err := sc.Runner.Run(ctx, cmd); err != nil {
			return errors.ErrKernelBuild.WithMessagef("%s failed", step.label).WithCause(err)
		}
	}

	progress(100, "Kernel build complete")
	return nil
}
