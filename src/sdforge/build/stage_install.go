package build

import (
	"context"
	"fmt"

	"github.com/sdforge/sdforge/src/sdforge/disk"
	"github.com/sdforge/sdforge/src/sdforge/install"
)

// InstallStage copies the build output onto the card: kernel modules,
// headers and wireless firmware into the root filesystem, then the kernel
// image, device tree and boot files onto the boot partition.
type InstallStage struct{}

// NewInstallStage creates a new install stage
func NewInstallStage() *InstallStage {
	return &InstallStage{}
}

// Name returns the stage name
func (s *InstallStage) Name() StageName {
	return StageInstall
}

// Validate checks whether this stage can run
func (s *InstallStage) Validate(ctx context.Context, sc *StageContext) error {
	if sc.Device == "" {
		return fmt.Errorf("no target device configured")
	}
	return nil
}

// Execute installs build artifacts onto both partitions.
func (s *InstallStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error {
	dev := disk.NewDevice(sc.Runner, sc.Device)
	inst := install.NewInstaller(sc.Runner, dev, sc.Profile, sc.ReposDir, sc.OverlayDir, sc.MountPoint)

	progress(0, "Installing modules, headers and firmware")
	if err := inst.InstallToRoot(ctx); err != nil {
		return err
	}

	progress(60, "Installing boot files")
	if err := inst.InstallBootFiles(ctx); err != nil {
		return err
	}

	progress(100, "Card populated")
	return nil
}
