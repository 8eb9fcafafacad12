package disk

import (
	"context"
	"testing"

	"github.com/sdforge/sdforge/src/sdforge/runner"
)

func TestPartitionNode(t *testing.T) {
	tests := []struct {
		name   string
		device string
		index  int
		want   string
	}{
		{"sd card reader", "/dev/sda", 1, "/dev/sda1"},
		{"sd card reader root", "/dev/sda", 2, "/dev/sda2"},
		{"mmc slot", "/dev/mmcblk0", 1, "/dev/mmcblk0p1"},
		{"mmc slot root", "/dev/mmcblk0", 2, "/dev/mmcblk0p2"},
		{"nvme", "/dev/nvme0n1", 1, "/dev/nvme0n1p1"},
		{"loop device", "/dev/loop3", 2, "/dev/loop3p2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PartitionNode(tt.device, tt.index); got != tt.want {
				t.Errorf("PartitionNode(%q, %d): expected %q, got %q", tt.device, tt.index, tt.want, got)
			}
		})
	}
}

func TestWipePartitionTable_CommandLine(t *testing.T) {
	r := runner.NewDryRunner()
	dev := NewDevice(r, "/dev/sda")

	if err := dev.WipePartitionTable(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := r.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 command, got %d", len(lines))
	}
	want := "sudo dd if=/dev/zero of=/dev/sda bs=1M count=1"
	if lines[0] != want {
		t.Errorf("expected %q, got %q", want, lines[0])
	}
}

func TestWriteSPL_CommandLine(t *testing.T) {
	r := runner.NewDryRunner()
	dev := NewDevice(r, "/dev/sda")

	err := dev.WriteSPL(context.Background(), "repositories/u-boot/u-boot-sunxi-with-spl.bin", 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "sudo dd if=repositories/u-boot/u-boot-sunxi-with-spl.bin of=/dev/sda bs=1024 seek=8"
	if got := r.Lines()[0]; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestCreatePartitions_CommandSequence(t *testing.T) {
	r := runner.NewDryRunner()
	dev := NewDevice(r, "/dev/mmcblk0")

	script := "1M,64M,c\n,,L\n"
	if err := dev.CreatePartitions(context.Background(), script); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"sudo blockdev --rereadpt /dev/mmcblk0",
		"sudo sfdisk /dev/mmcblk0",
		"sudo mkfs.vfat /dev/mmcblk0p1",
		"sudo mkfs.ext4 /dev/mmcblk0p2",
	}
	lines := r.Lines()
	if len(lines) != len(want) {
		t.Fatalf("expected %d commands, got %d: %v", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("command %d: expected %q, got %q", i, want[i], lines[i])
		}
	}

	if r.Recorded[1].Stdin != script {
		t.Errorf("sfdisk stdin: expected %q, got %q", script, r.Recorded[1].Stdin)
	}
}

func TestMountUnmount_CommandLines(t *testing.T) {
	r := runner.NewDryRunner()
	dev := NewDevice(r, "/dev/sda")
	ctx := context.Background()

	if err := dev.Mount(ctx, 2, "/mnt"); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if err := dev.Unmount(ctx, "/mnt"); err != nil {
		t.Fatalf("unmount: %v", err)
	}

	lines := r.Lines()
	if lines[0] != "sudo mount /dev/sda2 /mnt" {
		t.Errorf("unexpected mount line: %q", lines[0])
	}
	if lines[1] != "sudo umount /mnt" {
		t.Errorf("unexpected umount line: %q", lines[1])
	}
}
