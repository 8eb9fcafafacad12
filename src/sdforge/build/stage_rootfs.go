package build

import (
	"context"
	"fmt"

	"github.com/sdforge/sdforge/src/sdforge/disk"
	"github.com/sdforge/sdforge/src/sdforge/rootfs"
)

// RootfsStage bootstraps a Debian root filesystem onto the root partition
// and applies the first-boot configuration.
type RootfsStage struct{}

// NewRootfsStage creates a new rootfs stage
func NewRootfsStage() *RootfsStage {
	return &RootfsStage{}
}

// Name returns the stage name
func (s *RootfsStage) Name() StageName {
	return StageRootfs
}

// Validate checks whether this stage can run
func (s *RootfsStage) Validate(ctx context.Context, sc *StageContext) error {
	if sc.SkipRootfs {
		return nil
	}
	if sc.Device == "" {
		return fmt.Errorf("no target device configured")
	}
	if !sc.Runner.DryRun() && sc.RootPassword == "" {
		return fmt.Errorf("no root password available for the new system")
	}
	return nil
}

// Execute runs the bootstrap and configuration steps inside the mounted
// root partition.
func (s *RootfsStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error {
	if sc.SkipRootfs {
		log.Info("root filesystem build skipped by request")
		progress(100, "Root filesystem skipped")
		return nil
	}

	dev := disk.NewDevice(sc.Runner, sc.Device)
	builder := rootfs.NewBuilder(sc.Runner, dev, sc.Profile.Rootfs, sc.MountPoint)
	builder.RootPassword = sc.RootPassword

	progress(0, "Bootstrapping root filesystem")
	if err := builder.Build(ctx); err != nil {
		return err
	}

	progress(100, "Root filesystem ready")
	return nil
}
