package install

import (
	"context"
	"strings"
	"testing"

	"github.com/sdforge/sdforge/src/sdforge/board"
	"github.com/sdforge/sdforge/src/sdforge/disk"
	"github.com/sdforge/sdforge/src/sdforge/runner"
)

func testInstaller() (*Installer, *runner.DryRunner) {
	r := runner.NewDryRunner()
	dev := disk.NewDevice(r, "/dev/sda")
	i := NewInstaller(r, dev, board.Default(), "work/repositories", "work/kernel_config", "/mnt")
	return i, r
}

func TestBootFiles(t *testing.T) {
	i, _ := testInstaller()
	files := i.BootFiles()

	want := []BootFile{
		{Src: "work/repositories/linux/arch/arm64/boot/Image", Name: "Image"},
		{Src: "work/repositories/linux/arch/arm64/boot/dts/allwinner/sun50i-h618-orangepi-zero3.dtb", Name: "sun50i-h618-orangepi-zero3.dtb"},
		{Src: "work/kernel_config/boot.scr", Name: "boot.scr"},
		{Src: "work/kernel_config/expansion-board-overlay.dtbo", Name: "expansion-board-overlay.dtbo"},
	}
	if len(files) != len(want) {
		t.Fatalf("expected %d boot files, got %d: %v", len(want), len(files), files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("boot file %d: expected %+v, got %+v", i, want[i], files[i])
		}
	}
}

func TestInstallToRoot_CommandSequence(t *testing.T) {
	i, r := testInstaller()

	if err := i.InstallToRoot(context.Background()); err != nil {
		t.Fatalf("install: %v", err)
	}

	lines := r.Lines()
	if lines[0] != "sudo mount /dev/sda2 /mnt" {
		t.Errorf("expected root mount first, got %q", lines[0])
	}
	if lines[len(lines)-1] != "sudo umount /mnt" {
		t.Errorf("expected unmount last, got %q", lines[len(lines)-1])
	}

	joined := strings.Join(lines, "\n")
	for _, fragment := range []string{
		"make modules_install",
		"INSTALL_MOD_PATH=/mnt",
		"make headers_install",
		"INSTALL_HDR_PATH=/mnt/usr",
		"cp -r work/repositories/linux-firmware/rtlwifi /mnt/lib/firmware/",
	} {
		if !strings.Contains(joined, fragment) {
			t.Errorf("expected command containing %q, commands were:\n%s", fragment, joined)
		}
	}
}

func TestInstallBootFiles_CommandSequence(t *testing.T) {
	i, r := testInstaller()

	if err := i.InstallBootFiles(context.Background()); err != nil {
		t.Fatalf("install boot files: %v", err)
	}

	lines := r.Lines()
	if lines[0] != "sudo mount /dev/sda1 /mnt" {
		t.Errorf("expected boot partition mount first, got %q", lines[0])
	}

	joined := strings.Join(lines, "\n")
	for _, name := range board.Default().BootArtifacts() {
		if !strings.Contains(joined, "/mnt/"+name) {
			t.Errorf("expected copy of %s, commands were:\n%s", name, joined)
		}
	}

	if lines[len(lines)-1] != "sync" {
		t.Errorf("expected final sync, got %q", lines[len(lines)-1])
	}
	if lines[len(lines)-2] != "sudo umount /mnt" {
		t.Errorf("expected unmount before sync, got %q", lines[len(lines)-2])
	}
}
