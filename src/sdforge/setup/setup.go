// Package setup validates the host environment before any destructive work:
// network reachability, overlay files, block device presence, mount state,
// build dependencies, sudo pre-authorization and workspace layout.
package setup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sdforge/sdforge/src/common/errors"
	"github.com/sdforge/sdforge/src/common/logs"
	"github.com/sdforge/sdforge/src/common/paths"
	"github.com/sdforge/sdforge/src/sdforge/board"
	"github.com/sdforge/sdforge/src/sdforge/runner"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the setup package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// probe target for the internet reachability check
const (
	probeAddr    = "www.google.com:80"
	probeTimeout = 5 * time.Second
)

// Options configures the preflight checks.
type Options struct {
	// Device is the target block device node, e.g. /dev/sda
	Device string

	// Defconfig is the kernel defconfig file name expected in OverlayDir
	Defconfig string

	// OverlayDir holds the user-provided boot files and defconfig
	OverlayDir string

	// WorkspaceDir is the root under which repositories/ and build/ live
	WorkspaceDir string

	// MountPoint must be free for the populate stages
	MountPoint string

	// AutoInstall installs missing build dependencies via apt-get
	AutoInstall bool

	// Clean removes a pre-existing build directory instead of failing
	Clean bool
}

// Check is the outcome of one preflight probe.
type Check struct {
	Name   string
	OK     bool
	Detail string
}

// Checker runs the preflight checks for a board profile.
type Checker struct {
	run     runner.Runner
	profile *board.Profile
	opts    Options
}

// NewChecker creates a preflight checker.
func NewChecker(run runner.Runner, profile *board.Profile, opts Options) *Checker {
	if opts.MountPoint == "" {
		opts.MountPoint = "/mnt"
	}
	return &Checker{run: run, profile: profile, opts: opts}
}

// Run executes every check in order and returns the individual results.
// The returned error is the first hard failure; the sudo probe only warns.
func (c *Checker) Run(ctx context.Context) ([]Check, error) {
	var results []Check
	var firstErr error

	record := func(name string, err error) {
		check := Check{Name: name, OK: err == nil}
		if err != nil {
			check.Detail = err.Error()
			if firstErr == nil {
				firstErr = err
			}
			log.Error("Preflight check failed", "check", name, "error", err)
		} else {
			log.Info("Preflight check passed", "check", name)
		}
		results = append(results, check)
	}

	record("internet", c.CheckNetwork())
	record("overlay-files", c.CheckOverlay())
	record("block-device", c.CheckDevice())
	record("mounts", c.CheckMounts())
	record("packages", c.CheckPackages(ctx))

	// The sudo probe never fails the run; it surfaces the documented
	// caveat that escalation may block on an interactive prompt.
	sudoCheck := Check{Name: "sudo", OK: true}
	if err := c.CheckSudo(ctx); err != nil {
		sudoCheck.OK = false
		sudoCheck.Detail = err.Error()
		log.Warn("sudo is not pre-authorized; the build may pause for a password prompt")
	}
	results = append(results, sudoCheck)

	record("workspace", c.EnsureWorkspace())

	return results, firstErr
}

// CheckNetwork verifies internet reachability with a bounded TCP dial.
func (c *Checker) CheckNetwork() error {
	conn, err := net.DialTimeout("tcp", probeAddr, probeTimeout)
	if err != nil {
		return errors.ErrNoNetwork.WithCause(err)
	}
	conn.Close()
	return nil
}

// CheckOverlay verifies the overlay directory contains the defconfig and
// every prebuilt boot file the board needs.
func (c *Checker) CheckOverlay() error {
	if !paths.IsDir(c.opts.OverlayDir) {
		return errors.ErrOverlayMissing.WithMessagef("overlay directory %s not found", c.opts.OverlayDir)
	}

	required := append([]string{c.defconfig()}, c.profile.OverlayFiles...)
	var missing []string
	for _, name := range required {
		if !paths.IsFile(filepath.Join(c.opts.OverlayDir, name)) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errors.ErrOverlayMissing.WithMessagef(
			"missing from %s: %s", c.opts.OverlayDir, strings.Join(missing, ", "))
	}
	return nil
}

// CheckDevice verifies the target device is attached by listing
// /sys/class/block rather than trusting the /dev node alone.
func (c *Checker) CheckDevice() error {
	name := paths.DeviceName(c.opts.Device)
	entries, err := os.ReadDir("/sys/class/block")
	if err != nil {
		return errors.ErrDeviceNotFound.WithCause(err)
	}
	for _, entry := range entries {
		if entry.Name() == name {
			return nil
		}
	}
	return errors.ErrDeviceNotFound.WithMessagef("%s not present in /sys/class/block", c.opts.Device)
}

// CheckMounts verifies the target device is unmounted and the mount point free.
func (c *Checker) CheckMounts() error {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return errors.ErrDeviceMounted.WithCause(err)
	}
	defer f.Close()
	return checkMountTable(f, c.opts.Device, c.opts.MountPoint)
}

// checkMountTable scans a /proc/mounts style table for conflicts with the
// target device or the mount point. Partitions of the device count too.
func checkMountTable(r io.Reader, device, mountPoint string) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		mounted, at := fields[0], fields[1]
		if mountsDevice(mounted, device) || at == mountPoint {
			return errors.ErrDeviceMounted.WithMessagef(
				"%s is mounted on %s; %s must be free and the device unmounted", mounted, at, mountPoint)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.ErrDeviceMounted.WithCause(err)
	}
	return nil
}

// mountsDevice reports whether mounted is the target device itself or
// one of its partitions. A sibling disk with a longer name, /dev/sdab
// next to /dev/sda, does not count.
func mountsDevice(mounted, device string) bool {
	if mounted == device {
		return true
	}
	if !strings.HasPrefix(mounted, device) {
		return false
	}
	suffix := strings.TrimPrefix(strings.TrimPrefix(mounted, device), "p")
	if suffix == "" {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CheckPackages verifies the build dependencies via dpkg, optionally
// installing missing ones with apt-get.
func (c *Checker) CheckPackages(ctx context.Context) error {
	var missing []string
	for _, pkg := range c.profile.HostPackages {
		err := c.run.Run(ctx, runner.Command{Argv: []string{"dpkg", "-s", pkg}})
		if err == nil {
			continue
		}
		if !c.opts.AutoInstall {
			missing = append(missing, pkg)
			continue
		}
		log.Info("Installing missing package", "package", pkg)
		install := runner.Command{Argv: []string{"apt-get", "install", "-y", pkg}, Sudo: true}
		if err := c.run.Run(ctx, install); err != nil {
			return errors.ErrMissingPackages.WithMessagef("failed to install %s", pkg).WithCause(err)
		}
	}
	if len(missing) > 0 {
		return errors.ErrMissingPackages.WithMessagef(
			"not installed: %s (re-run with --install-deps)", strings.Join(missing, ", "))
	}
	return nil
}

// CheckSudo probes whether sudo works without an interactive prompt.
func (c *Checker) CheckSudo(ctx context.Context) error {
	err := c.run.Run(ctx, runner.Command{Argv: []string{"sudo", "-n", "true"}})
	if err != nil {
		return errors.ErrSudoPrompt.WithCause(err)
	}
	return nil
}

// EnsureWorkspace creates the workspace layout. A pre-existing build
// directory fails the check unless Clean was requested. A dry run
// reports the same conflicts but leaves the filesystem untouched.
func (c *Checker) EnsureWorkspace() error {
	buildDir := filepath.Join(c.opts.WorkspaceDir, "build")
	if paths.IsDir(buildDir) && !c.opts.Clean {
		return errors.ErrWorkspaceExists.WithMessagef(
			"%s already exists; rename it or re-run with --clean", buildDir)
	}

	if c.run.DryRun() {
		log.Info("Dry run, leaving the workspace untouched", "workspace", c.opts.WorkspaceDir)
		return nil
	}

	if paths.IsDir(buildDir) {
		if err := os.RemoveAll(buildDir); err != nil {
			return errors.ErrWorkspaceExists.WithCause(err)
		}
	}

	for _, dir := range []string{
		filepath.Join(c.opts.WorkspaceDir, "repositories"),
		buildDir,
		filepath.Join(c.opts.WorkspaceDir, "logs"),
	} {
		if err := paths.EnsureDirPath(dir); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Checker) defconfig() string {
	if c.opts.Defconfig != "" {
		return c.opts.Defconfig
	}
	return c.profile.DefaultDefconfig
}
