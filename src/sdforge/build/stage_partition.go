package build

import (
	"context"
	"fmt"

	"github.com/sdforge/sdforge/src/common/paths"
	"github.com/sdforge/sdforge/src/sdforge/disk"
)

// PartitionStage wipes the target card, writes the SPL image raw and lays
// down the boot and root partitions with their filesystems.
type PartitionStage struct{}

// NewPartitionStage creates a new partition stage
func NewPartitionStage() *PartitionStage {
	return &PartitionStage{}
}

// Name returns the stage name
func (s *PartitionStage) Name() StageName {
	return StagePartition
}

// Validate checks whether this stage can run
func (s *PartitionStage) Validate(ctx context.Context, sc *StageContext) error {
	if sc.Device == "" {
		return fmt.Errorf("no target device configured")
	}
	if sc.Runner.DryRun() {
		return nil
	}
	if !paths.IsBlockDevice(sc.Device) {
		return fmt.Errorf("%s is not a block device", sc.Device)
	}
	if !paths.Exists(SPLPath(sc)) {
		return fmt.Errorf("SPL image %s missing - firmware stage must run first", SPLPath(sc))
	}
	return nil
}

// Execute destroys whatever is on the card and writes the new layout.
func (s *PartitionStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error {
	dev := disk.NewDevice(sc.Runner, sc.Device)

	progress(0, "Wiping partition table")
	if err := dev.WipePartitionTable(ctx); err != nil {
		return err
	}

	progress(25, "Writing SPL image")
	if err := dev.WriteSPL(ctx, SPLPath(sc), sc.Profile.SPLSeekKiB); err != nil {
		return err
	}

	progress(50, "Creating partitions and filesystems")
	if err := dev.CreatePartitions(ctx, sc.Profile.SfdiskScript); err != nil {
		return err
	}

	progress(100, "Card partitioned")
	return nil
}
