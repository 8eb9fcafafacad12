// Package install populates the prepared card: kernel modules, headers and
// wireless firmware onto the root partition, then the kernel image, device
// tree files and boot script onto the boot partition.
package install

import (
	"context"
	"path/filepath"

	"github.com/sdforge/sdforge/src/common/errors"
	"github.com/sdforge/sdforge/src/common/logs"
	"github.com/sdforge/sdforge/src/common/paths"
	"github.com/sdforge/sdforge/src/sdforge/board"
	"github.com/sdforge/sdforge/src/sdforge/disk"
	"github.com/sdforge/sdforge/src/sdforge/runner"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the install package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Installer copies build artifacts onto the card's partitions.
type Installer struct {
	run        runner.Runner
	device     *disk.Device
	profile    *board.Profile
	reposDir   string
	overlayDir string
	mountPoint string
}

// NewInstaller creates an installer for the given device and source layout.
func NewInstaller(run runner.Runner, device *disk.Device, profile *board.Profile, reposDir, overlayDir, mountPoint string) *Installer {
	if mountPoint == "" {
		mountPoint = "/mnt"
	}
	return &Installer{
		run:        run,
		device:     device,
		profile:    profile,
		reposDir:   reposDir,
		overlayDir: overlayDir,
		mountPoint: mountPoint,
	}
}

func (i *Installer) kernelDir() string {
	return filepath.Join(i.reposDir, "linux")
}

func (i *Installer) makeEnv() []string {
	return []string{
		"ARCH=" + i.profile.KernelArch,
		"CROSS_COMPILE=" + i.profile.CrossCompile,
	}
}

// InstallToRoot mounts the root partition and installs kernel modules,
// headers and wireless firmware, unmounting on every exit path.
func (i *Installer) InstallToRoot(ctx context.Context) error {
	if err := i.device.Mount(ctx, 2, i.mountPoint); err != nil {
		return err
	}

	err := i.populateRoot(ctx)
	if umountErr := i.device.Unmount(ctx, i.mountPoint); umountErr != nil {
		if err == nil {
			return umountErr
		}
		log.Warn("Unmount after failed install also failed", "error", umountErr)
	}
	return err
}

func (i *Installer) populateRoot(ctx context.Context) error {
	if err := i.installModules(ctx); err != nil {
		return err
	}
	if err := i.installHeaders(ctx); err != nil {
		return err
	}
	return i.installFirmware(ctx)
}

func (i *Installer) installModules(ctx context.Context) error {
	env := append(i.makeEnv(), "INSTALL_MOD_PATH="+i.mountPoint)
	cmd := runner.Command{
		Argv: []string{"make", "modules_install"},
		Dir:  i.kernelDir(),
		Env:  env,
		Sudo: true,
	}
	if err := i.run.Run(ctx, cmd); err != nil {
		return errors.ErrModuleInstall.WithCause(err)
	}

	if !i.run.DryRun() && !paths.IsDir(filepath.Join(i.mountPoint, "lib", "modules")) {
		return errors.ErrModuleInstall.WithMessagef("modules not found under %s/lib/modules after install", i.mountPoint)
	}
	log.Info("Kernel modules installed", "dest", i.mountPoint)
	return nil
}

func (i *Installer) installHeaders(ctx context.Context) error {
	env := append(i.makeEnv(), "INSTALL_HDR_PATH="+filepath.Join(i.mountPoint, "usr"))
	cmd := runner.Command{
		Argv: []string{"make", "headers_install"},
		Dir:  i.kernelDir(),
		Env:  env,
		Sudo: true,
	}
	if err := i.run.Run(ctx, cmd); err != nil {
		return errors.ErrModuleInstall.WithMessage("header installation failed").WithCause(err)
	}
	log.Info("Kernel headers installed", "dest", filepath.Join(i.mountPoint, "usr"))
	return nil
}

func (i *Installer) installFirmware(ctx context.Context) error {
	src := filepath.Join(i.reposDir, "linux-firmware", i.profile.FirmwareSubdir)
	dst := filepath.Join(i.mountPoint, "lib", "firmware") + "/"
	if err := i.device.CopyTree(ctx, src, dst); err != nil {
		return errors.ErrModuleInstall.WithMessage("firmware copy failed").WithCause(err)
	}

	if !i.run.DryRun() && !paths.IsDir(filepath.Join(i.mountPoint, "lib", "firmware", i.profile.FirmwareSubdir)) {
		return errors.ErrModuleInstall.WithMessagef("firmware not found under %s after copy", dst)
	}
	log.Info("Wireless firmware installed", "subdir", i.profile.FirmwareSubdir)
	return nil
}

// BootFile pairs an artifact's source path with its name on the boot
// partition.
type BootFile struct {
	Src  string
	Name string
}

// BootFiles returns every artifact the boot partition needs: the kernel
// image and device tree from the kernel build, plus the prebuilt overlay
// files.
func (i *Installer) BootFiles() []BootFile {
	files := []BootFile{
		{Src: filepath.Join(i.kernelDir(), i.profile.KernelImagePath), Name: "Image"},
		{Src: filepath.Join(i.kernelDir(), i.profile.DTBPath), Name: filepath.Base(i.profile.DTBPath)},
	}
	for _, name := range i.profile.OverlayFiles {
		files = append(files, BootFile{
			Src:  filepath.Join(i.overlayDir, name),
			Name: name,
		})
	}
	return files
}

// InstallBootFiles mounts the boot partition, copies the kernel image,
// device tree blob, overlay and boot script onto it, then unmounts and
// syncs so the card can be removed.
func (i *Installer) InstallBootFiles(ctx context.Context) error {
	for _, f := range i.BootFiles() {
		if !i.run.DryRun() && !paths.Exists(f.Src) {
			return errors.ErrBootFilesMissing.WithMessagef("%s not found at %s", f.Name, f.Src)
		}
	}

	if err := i.device.Mount(ctx, 1, i.mountPoint); err != nil {
		return err
	}

	err := i.copyBootFiles(ctx)
	if umountErr := i.device.Unmount(ctx, i.mountPoint); umountErr != nil {
		if err == nil {
			return umountErr
		}
		log.Warn("Unmount after failed boot install also failed", "error", umountErr)
	}
	if err != nil {
		return err
	}

	return i.device.Sync(ctx)
}

func (i *Installer) copyBootFiles(ctx context.Context) error {
	for _, f := range i.BootFiles() {
		dst := filepath.Join(i.mountPoint, f.Name)
		if err := i.device.CopyTree(ctx, f.Src, dst); err != nil {
			return errors.ErrBootFilesMissing.WithMessagef("copying %s failed", f.Name).WithCause(err)
		}
		log.Info("Boot file installed", "file", f.Name)
	}
	return nil
}
