package errors

// Common error codes used across domains
const (
	CodeNotFound       Code = "not_found"
	CodeAlreadyExists  Code = "already_exists"
	CodeInvalidRequest Code = "invalid_request"
	CodeUnavailable    Code = "unavailable"
	CodeCommandFailed  Code = "command_failed"
	CodeInternal       Code = "internal_error"
)

// Exit codes by domain. Zero is success, one is reserved for unstructured
// errors, two for usage errors reported by the CLI layer.
const (
	ExitUsage   = 2
	ExitConfig  = 3
	ExitSetup   = 4
	ExitSource  = 5
	ExitBuild   = 6
	ExitDisk    = 7
	ExitRootfs  = 8
	ExitInstall = 9
	ExitState   = 10
)

// ============================================================================
// CLI / configuration errors
// ============================================================================

var (
	// ErrUsage is returned for invalid command lines: unknown flags,
	// bad flag values or missing required arguments
	ErrUsage = New(DomainConfig, CodeInvalidRequest, ExitUsage,
		"Invalid command line usage")

	// ErrConfigLoad is returned when the configuration file cannot be read
	ErrConfigLoad = New(DomainConfig, "load_failed", ExitConfig,
		"Failed to load configuration")
)

// ============================================================================
// Setup / preflight errors
// ============================================================================

var (
	// ErrNoNetwork is returned when the internet reachability probe fails
	ErrNoNetwork = New(DomainSetup, CodeUnavailable, ExitSetup,
		"Unable to verify internet connection")

	// ErrOverlayMissing is returned when required boot overlay files are absent
	ErrOverlayMissing = New(DomainSetup, CodeNotFound, ExitSetup,
		"Required boot files missing from overlay directory")

	// ErrDeviceNotFound is returned when the block device is not attached
	ErrDeviceNotFound = New(DomainSetup, CodeNotFound, ExitSetup,
		"Block device not present in /sys/class/block")

	// ErrDeviceMounted is returned when the target device or the mount point is busy
	ErrDeviceMounted = New(DomainSetup, "device_busy", ExitSetup,
		"Block device is mounted or the mount point is in use")

	// ErrMissingPackages is returned when build dependencies cannot be installed
	ErrMissingPackages = New(DomainSetup, "missing_packages", ExitSetup,
		"Required host packages are missing")

	// ErrWorkspaceExists is returned when the build directory is already present
	ErrWorkspaceExists = New(DomainSetup, CodeAlreadyExists, ExitSetup,
		"Workspace directory already exists")

	// ErrSudoPrompt is returned when privilege escalation would block on a prompt
	ErrSudoPrompt = New(DomainSetup, "sudo_prompt", ExitSetup,
		"sudo requires an interactive password prompt")
)

// ============================================================================
// Source acquisition errors
// ============================================================================

var (
	// ErrCloneFailed is returned when a git clone fails
	ErrCloneFailed = New(DomainSource, CodeCommandFailed, ExitSource,
		"Failed to clone repository")

	// ErrDownloadFailed is returned when a tarball download fails
	ErrDownloadFailed = New(DomainSource, "download_failed", ExitSource,
		"Failed to download source archive")

	// ErrChecksumMismatch is returned when an archive fails SHA-256 verification
	ErrChecksumMismatch = New(DomainSource, "checksum_mismatch", ExitSource,
		"Archive checksum does not match")

	// ErrExtractFailed is returned when an archive cannot be unpacked
	ErrExtractFailed = New(DomainSource, "extract_failed", ExitSource,
		"Failed to extract source archive")
)

// ============================================================================
// Build errors
// ============================================================================

var (
	// ErrFirmwareBuild is returned when the TF-A or U-Boot build fails
	ErrFirmwareBuild = New(DomainBuild, CodeCommandFailed, ExitBuild,
		"Bootloader build failed")

	// ErrKernelBuild is returned when the kernel build fails
	ErrKernelBuild = New(DomainBuild, "kernel_build_failed", ExitBuild,
		"Kernel build failed")

	// ErrDefconfigNotFound is returned when the requested defconfig is missing
	ErrDefconfigNotFound = New(DomainBuild, CodeNotFound, ExitBuild,
		"Kernel defconfig not found")
)

// ============================================================================
// Disk errors
// ============================================================================

var (
	// ErrPartitionFailed is returned when partitioning the device fails
	ErrPartitionFailed = New(DomainDisk, CodeCommandFailed, ExitDisk,
		"Failed to partition block device")

	// ErrFormatFailed is returned when filesystem creation fails
	ErrFormatFailed = New(DomainDisk, "format_failed", ExitDisk,
		"Failed to create filesystem")

	// ErrMountFailed is returned when a mount or unmount fails
	ErrMountFailed = New(DomainDisk, "mount_failed", ExitDisk,
		"Failed to mount or unmount partition")

	// ErrRawWriteFailed is returned when a raw dd write to the device fails
	ErrRawWriteFailed = New(DomainDisk, "raw_write_failed", ExitDisk,
		"Failed to write raw data to block device")
)

// ============================================================================
// Rootfs errors
// ============================================================================

var (
	// ErrBootstrapFailed is returned when debootstrap fails
	ErrBootstrapFailed = New(DomainRootfs, CodeCommandFailed, ExitRootfs,
		"Failed to bootstrap root filesystem")

	// ErrChrootFailed is returned when a chroot configuration step fails
	ErrChrootFailed = New(DomainRootfs, "chroot_failed", ExitRootfs,
		"Failed to configure root filesystem")
)

// ============================================================================
// Install errors
// ============================================================================

var (
	// ErrModuleInstall is returned when kernel module installation fails
	ErrModuleInstall = New(DomainInstal, CodeCommandFailed, ExitInstall,
		"Failed to install kernel modules")

	// ErrBootFilesMissing is returned when a required boot artifact is absent
	ErrBootFilesMissing = New(DomainInstal, CodeNotFound, ExitInstall,
		"Built boot artifact not found")
)

// ============================================================================
// State / ledger errors
// ============================================================================

var (
	// ErrLedger is returned when the run ledger cannot be opened or written
	ErrLedger = New(DomainState, CodeInternal, ExitState,
		"Run ledger operation failed")
)
