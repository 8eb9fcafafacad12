// Package board holds the declarative per-board data the pipeline consumes:
// partition layout, bootloader build parameters, device tree names, source
// repositories and rootfs defaults. The pipeline itself stays board-agnostic.
package board

import (
	"fmt"
	"strings"
)

// Repository identifies a source tree the fetch stage must provide.
type Repository struct {
	// Name is the checkout directory name under repositories/
	Name string

	// URL is the git remote
	URL string

	// Shallow clones with --depth=1 (used for the kernel to save time and disk)
	Shallow bool
}

// RootfsDefaults holds the Debian bootstrap parameters for a board.
type RootfsDefaults struct {
	Suite      string
	Hostname   string
	SerialUnit string
	Packages   []string
}

// Profile describes everything board-specific about preparing a bootable
// micro-SD card.
type Profile struct {
	Name        string
	DisplayName string
	SoC         string

	// Kernel build parameters
	KernelArch       string // make ARCH= value
	CrossCompile     string // make CROSS_COMPILE= prefix
	DefaultDefconfig string
	KernelImagePath  string // relative to the kernel tree
	DTBPath          string // relative to the kernel tree

	// Bootloader build parameters
	ATFPlatform    string // TF-A PLAT= value
	UBootDefconfig string
	SPLImage       string // SPL binary name under the u-boot tree
	SPLSeekKiB     int    // dd seek offset in KiB for the raw SPL write

	// Partitioning: an sfdisk input script and the boot partition size it
	// implies. Partition 1 is the FAT boot partition, partition 2 the root.
	SfdiskScript string

	// OverlayFiles are the prebuilt boot files the user must provide in the
	// overlay directory next to the defconfig.
	OverlayFiles []string

	// FirmwareSubdir is the linux-firmware subtree copied into the rootfs
	FirmwareSubdir string

	// HostPackages are the Debian build dependencies checked during preflight
	HostPackages []string

	// Repositories are the source trees required for the build
	Repositories []Repository

	Rootfs RootfsDefaults
}

// OrangePiZero3 is the shipped profile. The registry is keyed by name so
// profile data stays out of the pipeline code.
var OrangePiZero3 = &Profile{
	Name:        "orangepi-zero3",
	DisplayName: "Orange Pi Zero3",
	SoC:         "Allwinner H618",

	KernelArch:       "arm64",
	CrossCompile:     "aarch64-linux-gnu-",
	DefaultDefconfig: "opz3_defconfig",
	KernelImagePath:  "arch/arm64/boot/Image",
	DTBPath:          "arch/arm64/boot/dts/allwinner/sun50i-h618-orangepi-zero3.dtb",

	ATFPlatform:    "sun50i_h616",
	UBootDefconfig: "orangepi_zero3_defconfig",
	SPLImage:       "u-boot-sunxi-with-spl.bin",
	SPLSeekKiB:     8,

	SfdiskScript: "1M,64M,c\n,,L\n",

	OverlayFiles: []string{
		"boot.scr",
		"expansion-board-overlay.dtbo",
	},

	FirmwareSubdir: "rtlwifi",

	HostPackages: []string{
		"swig", "python3-dev", "build-essential", "device-tree-compiler",
		"git", "bison", "flex", "python3-setuptools", "libssl-dev",
		"dosfstools", "libncurses-dev", "bc", "debootstrap",
	},

	Repositories: []Repository{
		{Name: "linux", URL: "git://git.kernel.org/pub/scm/linux/kernel/git/torvalds/linux.git", Shallow: true},
		{Name: "u-boot", URL: "git://git.denx.de/u-boot.git"},
		{Name: "arm-trusted-firmware", URL: "https://github.com/ARM-software/arm-trusted-firmware.git"},
		{Name: "linux-firmware", URL: "git://git.kernel.org/pub/scm/linux/kernel/git/firmware/linux-firmware.git"},
	},

	Rootfs: RootfsDefaults{
		Suite:      "bookworm",
		Hostname:   "orangepi",
		SerialUnit: "serial-getty@ttyS0.service",
		Packages:   []string{"network-manager", "wpasupplicant", "iw", "usbutils"},
	},
}

var registry = map[string]*Profile{
	OrangePiZero3.Name: OrangePiZero3,
}

// Default returns the profile used when none is configured.
func Default() *Profile {
	return OrangePiZero3
}

// Lookup returns the profile registered under the given name.
func Lookup(name string) (*Profile, error) {
	if name == "" {
		return Default(), nil
	}
	p, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown board profile %q", name)
	}
	return p, nil
}

// Names returns the registered profile names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// BootArtifacts returns the file names expected on the boot partition:
// the kernel image plus the board's overlay files and device tree blob.
func (p *Profile) BootArtifacts() []string {
	artifacts := []string{"Image", baseName(p.DTBPath)}
	artifacts = append(artifacts, p.OverlayFiles...)
	return artifacts
}

func baseName(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
