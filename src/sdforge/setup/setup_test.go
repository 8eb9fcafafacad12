package setup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sdforge/sdforge/src/sdforge/board"
	"github.com/sdforge/sdforge/src/sdforge/runner"
)

func TestCheckMountTable(t *testing.T) {
	table := `proc /proc proc rw 0 0
/dev/nvme0n1p2 / ext4 rw 0 0
/dev/sdb1 /media/stick vfat rw 0 0
/dev/sdab /data ext4 rw 0 0
/dev/mmcblk1p1 /media/card vfat rw 0 0
tmpfs /run tmpfs rw 0 0
`

	tests := []struct {
		name       string
		device     string
		mountPoint string
		wantErr    bool
		wantDetail string
	}{
		{"free device and mount point", "/dev/sda", "/mnt", false, ""},
		{"device partition mounted", "/dev/sdb", "/mnt", true, "/dev/sdb1"},
		{"mmc partition mounted", "/dev/mmcblk1", "/mnt", true, "/dev/mmcblk1p1"},
		{"longer-named sibling disk ignored", "/dev/sda", "/mnt", false, ""},
		{"sibling disk itself still matches", "/dev/sdab", "/mnt", true, "/dev/sdab"},
		{"mount point busy", "/dev/sda", "/media/stick", true, "/media/stick"},
		{"system disk untouched", "/dev/sdc", "/mnt", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkMountTable(strings.NewReader(table), tt.device, tt.mountPoint)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.wantDetail) {
					t.Errorf("expected error mentioning %q, got %q", tt.wantDetail, err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCheckOverlay(t *testing.T) {
	profile := board.Default()
	overlayDir := t.TempDir()

	c := NewChecker(runner.NewDryRunner(), profile, Options{OverlayDir: overlayDir})

	// Empty directory: everything missing
	err := c.CheckOverlay()
	if err == nil {
		t.Fatal("expected missing overlay files to fail the check")
	}
	if !strings.Contains(err.Error(), profile.DefaultDefconfig) {
		t.Errorf("expected error to name the defconfig, got %q", err)
	}

	required := append([]string{profile.DefaultDefconfig}, profile.OverlayFiles...)
	for _, name := range required {
		if err := os.WriteFile(filepath.Join(overlayDir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.CheckOverlay(); err != nil {
		t.Errorf("complete overlay rejected: %v", err)
	}
}

func TestCheckOverlay_MissingDirectory(t *testing.T) {
	c := NewChecker(runner.NewDryRunner(), board.Default(), Options{
		OverlayDir: filepath.Join(t.TempDir(), "does-not-exist"),
	})
	if err := c.CheckOverlay(); err == nil {
		t.Fatal("expected missing overlay directory to fail the check")
	}
}

func TestCheckPackages_ReportsMissing(t *testing.T) {
	// The dry runner answers every dpkg probe with success, so the check
	// passes without touching the host.
	c := NewChecker(runner.NewDryRunner(), board.Default(), Options{})
	if err := c.CheckPackages(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEnsureWorkspace(t *testing.T) {
	workspace := t.TempDir()
	c := NewChecker(runner.NewHostRunner(), board.Default(), Options{WorkspaceDir: workspace})

	if err := c.EnsureWorkspace(); err != nil {
		t.Fatalf("fresh workspace rejected: %v", err)
	}
	for _, dir := range []string{"repositories", "build", "logs"} {
		info, err := os.Stat(filepath.Join(workspace, dir))
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", dir)
		}
	}

	// A second run finds the build directory and must refuse
	if err := c.EnsureWorkspace(); err == nil {
		t.Fatal("expected pre-existing build directory to fail the check")
	}

	// With Clean set the old directory is replaced
	c = NewChecker(runner.NewHostRunner(), board.Default(), Options{WorkspaceDir: workspace, Clean: true})
	if err := c.EnsureWorkspace(); err != nil {
		t.Errorf("clean run rejected: %v", err)
	}
}

func TestEnsureWorkspace_DryRunLeavesFilesystemAlone(t *testing.T) {
	workspace := t.TempDir()
	artifact := filepath.Join(workspace, "build", "artifact.bin")
	if err := os.MkdirAll(filepath.Dir(artifact), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(artifact, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	// Without Clean the conflict is still reported
	c := NewChecker(runner.NewDryRunner(), board.Default(), Options{WorkspaceDir: workspace})
	if err := c.EnsureWorkspace(); err == nil {
		t.Fatal("expected pre-existing build directory to fail the check")
	}

	// With Clean the old directory survives a dry run
	c = NewChecker(runner.NewDryRunner(), board.Default(), Options{WorkspaceDir: workspace, Clean: true})
	if err := c.EnsureWorkspace(); err != nil {
		t.Fatalf("dry run rejected: %v", err)
	}
	if _, err := os.Stat(artifact); err != nil {
		t.Errorf("dry run removed %s: %v", artifact, err)
	}
	for _, dir := range []string{"repositories", "logs"} {
		if _, err := os.Stat(filepath.Join(workspace, dir)); err == nil {
			t.Errorf("dry run created %s", dir)
		}
	}
}

func TestDefconfigFallback(t *testing.T) {
	c := NewChecker(runner.NewDryRunner(), board.Default(), Options{})
	if got := c.defconfig(); got != board.Default().DefaultDefconfig {
		t.Errorf("expected board default, got %q", got)
	}

	c = NewChecker(runner.NewDryRunner(), board.Default(), Options{Defconfig: "custom_defconfig"})
	if got := c.defconfig(); got != "custom_defconfig" {
		t.Errorf("expected override, got %q", got)
	}
}
