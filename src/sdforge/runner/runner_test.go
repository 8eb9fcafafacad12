package runner

import (
	"context"
	"strings"
	"testing"
)

func TestCommandLine_Plain(t *testing.T) {
	cmd := Command{Argv: []string{"git", "clone", "https://example.com/repo.git"}}
	want := "git clone https://example.com/repo.git"
	if got := cmd.Line(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestCommandLine_SudoWithEnv(t *testing.T) {
	cmd := Command{
		Argv: []string{"make", "Image", "-j4"},
		Env:  []string{"ARCH=arm64", "CROSS_COMPILE=aarch64-linux-gnu-"},
		Sudo: true,
	}
	want := "sudo ARCH=arm64 CROSS_COMPILE=aarch64-linux-gnu- make Image -j4"
	if got := cmd.Line(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestCommandLine_EnvWithoutSudo(t *testing.T) {
	// Env entries go through the process environment, not the command line
	cmd := Command{
		Argv: []string{"make", "dtbs"},
		Env:  []string{"ARCH=arm64"},
	}
	want := "make dtbs"
	if got := cmd.Line(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDryRunner_RecordsInOrder(t *testing.T) {
	r := NewDryRunner()
	ctx := context.Background()

	cmds := []Command{
		{Argv: []string{"dd", "if=/dev/zero", "of=/dev/sda", "bs=1M", "count=1"}, Sudo: true},
		{Argv: []string{"sfdisk", "/dev/sda"}, Stdin: "1M,64M,c\n,,L\n", Sudo: true},
	}
	for _, cmd := range cmds {
		if err := r.Run(ctx, cmd); err != nil {
			t.Fatalf("dry run should never fail: %v", err)
		}
	}

	if len(r.Recorded) != 2 {
		t.Fatalf("expected 2 recorded commands, got %d", len(r.Recorded))
	}
	lines := r.Lines()
	if lines[0] != "sudo dd if=/dev/zero of=/dev/sda bs=1M count=1" {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if r.Recorded[1].Stdin != "1M,64M,c\n,,L\n" {
		t.Errorf("stdin not preserved: %q", r.Recorded[1].Stdin)
	}
}

func TestDryRunner_OutputUsesCannedResponse(t *testing.T) {
	r := NewDryRunner()
	r.Outputs["nproc"] = "8\n"

	out, err := r.Output(context.Background(), Command{Argv: []string{"nproc"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "8\n" {
		t.Errorf("expected canned output, got %q", out)
	}

	out, err = r.Output(context.Background(), Command{Argv: []string{"unknown-probe"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Errorf("expected empty output for unknown program, got %q", out)
	}
}

func TestDryRunner_DryRun(t *testing.T) {
	if !NewDryRunner().DryRun() {
		t.Error("DryRunner must report dry run")
	}
	if NewHostRunner().DryRun() {
		t.Error("HostRunner must not report dry run")
	}
}

func TestCommandError_IncludesOutput(t *testing.T) {
	err := &CommandError{Cmd: "sfdisk /dev/sda", Output: "sfdisk: cannot open\n", Err: context.DeadlineExceeded}
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty error message")
	}
	if want := "sfdisk: cannot open"; !strings.Contains(msg, want) {
		t.Errorf("expected message to contain %q, got %q", want, msg)
	}
}
