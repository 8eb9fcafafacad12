package build

import (
	"context"
	"strconv"
	"strings"

	"github.com/sdforge/sdforge/src/sdforge/board"
	"github.com/sdforge/sdforge/src/sdforge/runner"
)

// MakeEnv returns the environment assignments every cross make needs.
func MakeEnv(profile *board.Profile) []string {
	return []string{
		"ARCH=" + profile.KernelArch,
		"CROSS_COMPILE=" + profile.CrossCompile,
	}
}

// DetectNproc queries the host for its core count to parallelize the
// kernel build. Any failure falls back to a single job.
func DetectNproc(ctx context.Context, run runner.Runner) int {
	out, err := run.Output(ctx, runner.Command{Argv: []string{"nproc"}})
	if err != nil {
		log.Warn("nproc query failed, building with one job", "error", err)
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// JobsFlag renders the make -j flag for the detected core count.
func JobsFlag(nproc int) string {
	if nproc < 1 {
		nproc = 1
	}
	return "-j" + strconv.Itoa(nproc)
}
