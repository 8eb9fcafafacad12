// Package disk performs the destructive block device operations: wiping
// the partition table, raw SPL writes, sfdisk partitioning, filesystem
// creation and mount management. Every operation goes through the runner
// so a dry run never touches the device.
package disk

import (
	"context"
	"fmt"
	"strings"

	"github.com/sdforge/sdforge/src/common/errors"
	"github.com/sdforge/sdforge/src/common/logs"
	"github.com/sdforge/sdforge/src/sdforge/runner"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the disk package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Device wraps one target block device.
type Device struct {
	run  runner.Runner
	path string
}

// NewDevice creates a handle for the block device at path, e.g. /dev/sda.
func NewDevice(run runner.Runner, path string) *Device {
	return &Device{run: run, path: path}
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// PartitionNode returns the device node of the given partition index.
// mmcblk, nvme and loop devices take a "p" infix; sd-style devices do not.
func PartitionNode(device string, index int) string {
	name := strings.TrimPrefix(device, "/dev/")
	if strings.HasPrefix(name, "mmcblk") || strings.HasPrefix(name, "nvme") || strings.HasPrefix(name, "loop") {
		return fmt.Sprintf("/dev/%sp%d", name, index)
	}
	return fmt.Sprintf("/dev/%s%d", name, index)
}

// Partition returns the node of the given partition on this device.
func (d *Device) Partition(index int) string {
	return PartitionNode(d.path, index)
}

// WipePartitionTable zeroes the first MiB of the device, destroying the
// partition table and any bootloader written to the reserved area.
func (d *Device) WipePartitionTable(ctx context.Context) error {
	cmd := runner.Command{
		Argv: []string{"dd", "if=/dev/zero", "of=" + d.path, "bs=1M", "count=1"},
		Sudo: true,
	}
	if err := d.run.Run(ctx, cmd); err != nil {
		return errors.ErrRawWriteFailed.WithMessagef("wipe of %s failed", d.path).WithCause(err)
	}
	log.Info("Partition table wiped", "device", d.path)
	return nil
}

// WriteSPL writes the SPL bootloader image to the raw device at the
// board's fixed KiB offset, below the first partition.
func (d *Device) WriteSPL(ctx context.Context, splPath string, seekKiB int) error {
	cmd := runner.Command{
		Argv: []string{"dd", "if=" + splPath, "of=" + d.path, "bs=1024", fmt.Sprintf("seek=%d", seekKiB)},
		Sudo: true,
	}
	if err := d.run.Run(ctx, cmd); err != nil {
		return errors.ErrRawWriteFailed.WithMessagef("SPL write to %s failed", d.path).WithCause(err)
	}
	log.Info("SPL written", "device", d.path, "spl", splPath, "seek_kib", seekKiB)
	return nil
}

// CreatePartitions rereads the kernel's view of the device, applies the
// sfdisk script, then formats partition 1 as vfat and partition 2 as ext4.
func (d *Device) CreatePartitions(ctx context.Context, sfdiskScript string) error {
	reread := runner.Command{Argv: []string{"blockdev", "--rereadpt", d.path}, Sudo: true}
	if err := d.run.Run(ctx, reread); err != nil {
		return errors.ErrPartitionFailed.WithCause(err)
	}

	apply := runner.Command{Argv: []string{"sfdisk", d.path}, Stdin: sfdiskScript, Sudo: true}
	if err := d.run.Run(ctx, apply); err != nil {
		return errors.ErrPartitionFailed.WithMessagef("sfdisk on %s failed", d.path).WithCause(err)
	}
	log.Info("Partition table written", "device", d.path)

	mkvfat := runner.Command{Argv: []string{"mkfs.vfat", d.Partition(1)}, Sudo: true}
	if err := d.run.Run(ctx, mkvfat); err != nil {
		return errors.ErrFormatFailed.WithMessagef("mkfs.vfat on %s failed", d.Partition(1)).WithCause(err)
	}

	mkext4 := runner.Command{Argv: []string{"mkfs.ext4", d.Partition(2)}, Sudo: true}
	if err := d.run.Run(ctx, mkext4); err != nil {
		return errors.ErrFormatFailed.WithMessagef("mkfs.ext4 on %s failed", d.Partition(2)).WithCause(err)
	}

	log.Info("Filesystems created", "boot", d.Partition(1), "root", d.Partition(2))
	return nil
}

// Mount mounts the given partition index on mountPoint.
func (d *Device) Mount(ctx context.Context, index int, mountPoint string) error {
	cmd := runner.Command{Argv: []string{"mount", d.Partition(index), mountPoint}, Sudo: true}
	if err := d.run.Run(ctx, cmd); err != nil {
		return errors.ErrMountFailed.WithMessagef("mount %s on %s failed", d.Partition(index), mountPoint).WithCause(err)
	}
	return nil
}

// Unmount unmounts whatever is mounted on mountPoint.
func (d *Device) Unmount(ctx context.Context, mountPoint string) error {
	cmd := runner.Command{Argv: []string{"umount", mountPoint}, Sudo: true}
	if err := d.run.Run(ctx, cmd); err != nil {
		return errors.ErrMountFailed.WithMessagef("umount of %s failed", mountPoint).WithCause(err)
	}
	return nil
}

// CopyTree copies a file or directory recursively into the mounted target.
func (d *Device) CopyTree(ctx context.Context, src, dst string) error {
	cmd := runner.Command{Argv: []string{"cp", "-r", src, dst}, Sudo: true}
	if err := d.run.Run(ctx, cmd); err != nil {
		return errors.ErrMountFailed.WithMessagef("copy %s to %s failed", src, dst).WithCause(err)
	}
	return nil
}

// Sync flushes pending writes before the card is removed.
func (d *Device) Sync(ctx context.Context) error {
	return d.run.Run(ctx, runner.Command{Argv: []string{"sync"}})
}
