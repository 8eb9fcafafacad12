// Package build provides the staged pipeline that turns a blank micro-SD
// card into a bootable system: preflight, fetch, firmware, kernel,
// partition, rootfs, install and teardown.
package build

import (
	"context"

	"github.com/sdforge/sdforge/src/common/logs"
	"github.com/sdforge/sdforge/src/sdforge/board"
	"github.com/sdforge/sdforge/src/sdforge/runner"
	"github.com/sdforge/sdforge/src/sdforge/setup"
	"github.com/sdforge/sdforge/src/sdforge/source"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the build package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// StageName identifies a pipeline stage
type StageName string

const (
	StagePreflight StageName = "preflight"
	StageFetch     StageName = "fetch"
	StageFirmware  StageName = "firmware"
	StageKernel    StageName = "kernel"
	StagePartition StageName = "partition"
	StageRootfs    StageName = "rootfs"
	StageInstall   StageName = "install"
	StageTeardown  StageName = "teardown"
)

// Stage defines the interface for a single pipeline stage
type Stage interface {
	// Name returns the stage name
	Name() StageName

	// Validate checks whether this stage can run given the current context
	Validate(ctx context.Context, sc *StageContext) error

	// Execute runs the stage, updating progress via the callback
	Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error
}

// ProgressFunc reports stage progress (0-100) with an optional message
type ProgressFunc func(percent int, message string)

// StageContext holds shared state passed through the pipeline
type StageContext struct {
	RunID     string
	Device    string
	Defconfig string // file name in OverlayDir; empty means the board default
	Profile   *board.Profile

	WorkspaceDir string // root holding repositories/, build/ and logs/
	ReposDir     string // cloned source trees
	OverlayDir   string // user-provided defconfig and prebuilt boot files
	MountPoint   string // where card partitions get mounted

	Runner runner.Runner
	Nproc  int // parallel make jobs, detected before the pipeline starts

	// Mirrors maps a repository name to a release tarball used instead of
	// its git clone, for networks where the git protocol is blocked
	Mirrors map[string]source.Archive

	// RootPassword for the bootstrapped system, resolved by the CLI
	RootPassword string

	SkipRootfs  bool // leave the root partition formatted but empty
	Teardown    bool // remove the workspace after a successful run
	AutoInstall bool // apt-get install missing build dependencies
	Clean       bool // replace a pre-existing build directory

	// Checks is populated by the preflight stage for the check command
	Checks []setup.Check
}

// EffectiveDefconfig returns the defconfig name the kernel build will use.
func (sc *StageContext) EffectiveDefconfig() string {
	if sc.Defconfig != "" {
		return sc.Defconfig
	}
	return sc.Profile.DefaultDefconfig
}
