package build

import (
	"context"
	"testing"

	"github.com/sdforge/sdforge/src/sdforge/board"
	"github.com/sdforge/sdforge/src/sdforge/runner"
)

func TestMakeEnv(t *testing.T) {
	env := MakeEnv(board.Default())
	if len(env) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(env))
	}
	if env[0] != "ARCH=arm64" {
		t.Errorf("expected ARCH=arm64, got %q", env[0])
	}
	if env[1] != "CROSS_COMPILE=aarch64-linux-gnu-" {
		t.Errorf("expected CROSS_COMPILE=aarch64-linux-gnu-, got %q", env[1])
	}
}

func TestDetectNproc(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   int
	}{
		{"normal host", "8\n", 8},
		{"single core", "1", 1},
		{"garbage output", "lots\n", 1},
		{"empty output", "", 1},
		{"zero cores", "0\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runner.NewDryRunner()
			r.Outputs["nproc"] = tt.output
			if got := DetectNproc(context.Background(), r); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestJobsFlag(t *testing.T) {
	tests := []struct {
		nproc int
		want  string
	}{
		{8, "-j8"},
		{1, "-j1"},
		{0, "-j1"},
		{-3, "-j1"},
	}
	for _, tt := range tests {
		if got := JobsFlag(tt.nproc); got != tt.want {
			t.Errorf("JobsFlag(%d): expected %q, got %q", tt.nproc, tt.want, got)
		}
	}
}

func TestEffectiveDefconfig(t *testing.T) {
	sc := &StageContext{Profile: board.Default()}
	if got := sc.EffectiveDefconfig(); got != board.Default().DefaultDefconfig {
		t.Errorf("expected board default, got %q", got)
	}

	sc.Defconfig = "custom_defconfig"
	if got := sc.EffectiveDefconfig(); got != "custom_defconfig" {
		t.Errorf("expected override, got %q", got)
	}
}
