// Package rootfs bootstraps a Debian root filesystem onto the card's root
// partition and configures it inside a chroot: root password, hostname,
// fstab, apt sources, serial console and a starter package set.
package rootfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/sdforge/sdforge/src/common/errors"
	"github.com/sdforge/sdforge/src/common/logs"
	"github.com/sdforge/sdforge/src/sdforge/board"
	"github.com/sdforge/sdforge/src/sdforge/disk"
	"github.com/sdforge/sdforge/src/sdforge/runner"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the rootfs package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Builder bootstraps and configures the root filesystem.
type Builder struct {
	run        runner.Runner
	device     *disk.Device
	defaults   board.RootfsDefaults
	mountPoint string

	// RootPassword is fed to passwd inside the chroot. The cmd layer
	// fills it from config or an interactive prompt before Execute runs.
	RootPassword string
}

// NewBuilder creates a rootfs builder for the given device.
func NewBuilder(run runner.Runner, device *disk.Device, defaults board.RootfsDefaults, mountPoint string) *Builder {
	if mountPoint == "" {
		mountPoint = "/mnt"
	}
	return &Builder{run: run, device: device, defaults: defaults, mountPoint: mountPoint}
}

// chroot prefixes a command so it runs inside the mounted rootfs.
func (b *Builder) chroot(argv ...string) []string {
	return append([]string{"chroot", b.mountPoint}, argv...)
}

// Build mounts the root partition, runs both debootstrap stages and the
// chroot configuration, and unmounts on every exit path.
func (b *Builder) Build(ctx context.Context) error {
	if err := b.device.Mount(ctx, 2, b.mountPoint); err != nil {
		return err
	}

	err := b.populate(ctx)
	if umountErr := b.device.Unmount(ctx, b.mountPoint); umountErr != nil {
		if err == nil {
			return umountErr
		}
		log.Warn("Unmount after failed rootfs build also failed", "error", umountErr)
	}
	return err
}

func (b *Builder) populate(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"bootstrap-stage1", b.bootstrapStage1},
		{"bootstrap-stage2", b.bootstrapStage2},
		{"root-password", b.setRootPassword},
		{"hostname", b.setHostname},
		{"serial-console", b.enableSerialConsole},
		{"fstab", b.writeFstab},
		{"apt-sources", b.writeAptSources},
		{"starter-packages", b.installPackages},
		{"cleanup", b.cleanup},
	}

	for _, step := range steps {
		log.Info("Rootfs step", "step", step.name)
		if err := step.fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) bootstrapStage1(ctx context.Context) error {
	cmd := runner.Command{
		Argv: []string{"debootstrap", "--arch=arm64", "--foreign", b.defaults.Suite, b.mountPoint},
		Sudo: true,
	}
	if err := b.run.Run(ctx, cmd); err != nil {
		return errors.ErrBootstrapFailed.WithMessage("debootstrap first stage failed").WithCause(err)
	}
	return nil
}

func (b *Builder) bootstrapStage2(ctx context.Context) error {
	cmd := runner.Command{
		Argv: b.chroot("/debootstrap/debootstrap", "--second-stage"),
		Sudo: true,
	}
	if err := b.run.Run(ctx, cmd); err != nil {
		return errors.ErrBootstrapFailed.WithMessage("debootstrap second stage failed").WithCause(err)
	}
	return nil
}

func (b *Builder) setRootPassword(ctx context.Context) error {
	password := b.RootPassword
	if password == "" {
		if !b.run.DryRun() {
			return errors.ErrChrootFailed.WithMessage("no root password provided")
		}
		// A dry run has no password to feed in, but the recorded plan
		// still shows the passwd step.
		password = "********"
	}
	cmd := runner.Command{
		Argv:  b.chroot("passwd"),
		Stdin: password + "\n" + password + "\n",
		Sudo:  true,
	}
	if err := b.run.Run(ctx, cmd); err != nil {
		return errors.ErrChrootFailed.WithMessage("setting root password failed").WithCause(err)
	}
	return nil
}

func (b *Builder) setHostname(ctx context.Context) error {
	return b.writeEtcFile(ctx, "/etc/hostname", b.defaults.Hostname+"\n", "hostname")
}

func (b *Builder) enableSerialConsole(ctx context.Context) error {
	cmd := runner.Command{
		Argv: b.chroot("systemctl", "enable", b.defaults.SerialUnit),
		Sudo: true,
	}
	if err := b.run.Run(ctx, cmd); err != nil {
		return errors.ErrChrootFailed.WithMessage("enabling serial console failed").WithCause(err)
	}
	return nil
}

func (b *Builder) writeFstab(ctx context.Context) error {
	return b.writeEtcFile(ctx, "/etc/fstab", FstabContent(), "fstab")
}

func (b *Builder) writeAptSources(ctx context.Context) error {
	return b.writeEtcFile(ctx, "/etc/apt/sources.list", SourcesListContent(b.defaults.Suite), "apt sources")
}

// writeEtcFile writes a config file inside the rootfs through tee so the
// write happens with escalated rights, taking the content on stdin rather
// than splicing it into a shell line.
func (b *Builder) writeEtcFile(ctx context.Context, path, content, what string) error {
	cmd := runner.Command{
		Argv:  b.chroot("tee", path),
		Stdin: content,
		Sudo:  true,
	}
	if err := b.run.Run(ctx, cmd); err != nil {
		return errors.ErrChrootFailed.WithMessagef("writing %s failed", what).WithCause(err)
	}
	return nil
}

func (b *Builder) installPackages(ctx context.Context) error {
	if len(b.defaults.Packages) == 0 {
		return nil
	}
	argv := append([]string{"apt-get", "install", "-y"}, b.defaults.Packages...)
	cmd := runner.Command{Argv: b.chroot(argv...), Sudo: true}
	if err := b.run.Run(ctx, cmd); err != nil {
		return errors.ErrChrootFailed.WithMessage("installing starter packages failed").WithCause(err)
	}
	return nil
}

func (b *Builder) cleanup(ctx context.Context) error {
	clean := runner.Command{Argv: b.chroot("apt-get", "clean"), Sudo: true}
	if err := b.run.Run(ctx, clean); err != nil {
		return errors.ErrChrootFailed.WithMessage("apt-get clean failed").WithCause(err)
	}
	// resolv.conf leaks the build host's resolver into the image
	rm := runner.Command{Argv: b.chroot("rm", "-f", "/etc/resolv.conf"), Sudo: true}
	if err := b.run.Run(ctx, rm); err != nil {
		return errors.ErrChrootFailed.WithMessage("removing resolv.conf failed").WithCause(err)
	}
	return nil
}

// FstabContent renders the fstab for the two-partition card layout. The
// device names are the board's own view of the card, not the build host's.
func FstabContent() string {
	lines := []string{
		"none\t/tmp\ttmpfs\tdefaults,noatime,mode=1777\t0\t0",
		"/dev/mmcblk0p2\t/\text4\tdefaults\t0\t1",
		"/dev/mmcblk0p1\t/boot\tvfat\tdefaults\t0\t2",
	}
	return strings.Join(lines, "\n") + "\n"
}

// SourcesListContent renders the standard Debian apt sources for a suite.
func SourcesListContent(suite string) string {
	var sb strings.Builder
	for _, repo := range []struct{ url, dist string }{
		{"http://deb.debian.org/debian", suite},
		{"http://deb.debian.org/debian-security/", suite + "-security"},
		{"http://deb.debian.org/debian", suite + "-updates"},
	} {
		fmt.Fprintf(&sb, "deb %s %s main non-free-firmware\n", repo.url, repo.dist)
		fmt.Fprintf(&sb, "deb-src %s %s main non-free-firmware\n", repo.url, repo.dist)
	}
	return sb.String()
}
