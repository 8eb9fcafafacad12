// Package cmd implements the sdforge command-line interface.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sdforge/sdforge/src/common/cli"
	commonerrors "github.com/sdforge/sdforge/src/common/errors"
	"github.com/sdforge/sdforge/src/common/logs"
	"github.com/sdforge/sdforge/src/common/paths"
	"github.com/sdforge/sdforge/src/common/version"
	"github.com/sdforge/sdforge/src/sdforge/board"
	"github.com/sdforge/sdforge/src/sdforge/build"
	"github.com/sdforge/sdforge/src/sdforge/disk"
	"github.com/sdforge/sdforge/src/sdforge/install"
	"github.com/sdforge/sdforge/src/sdforge/rootfs"
	"github.com/sdforge/sdforge/src/sdforge/runner"
	"github.com/sdforge/sdforge/src/sdforge/setup"
	"github.com/sdforge/sdforge/src/sdforge/source"
	"github.com/sdforge/sdforge/src/sdforge/state"
)

var (
	// VersionInfo holds version information - set at build time via ldflags
	VersionInfo = version.New()

	// Global logger instance
	log *logs.Logger

	// Configuration file path
	cfgFile string
)

// Linker variables - these are set via ldflags at build time
// They must be initialized as empty strings or literals for ldflags to work
var (
	Version        = "dev"
	ReleaseName    = "Sunxi"
	ReleaseVersion = "0.0.0"
	BuildDate      = "unknown"
	GitCommit      = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sdforge",
	Short: "Prepare bootable micro-SD cards for single-board computers",
	Long: `sdforge builds everything a single-board computer needs to boot from a
micro-SD card: it clones the mainline kernel, U-Boot and trusted firmware,
cross-compiles them, partitions the card, bootstraps a Debian root
filesystem and installs the boot files.

The card named with --device is wiped completely. Double-check the device
node before running.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command
func Execute() {
	// Populate VersionInfo from linker variables
	VersionInfo.Version = Version
	VersionInfo.ReleaseName = ReleaseName
	VersionInfo.ReleaseVersion = ReleaseVersion
	VersionInfo.BuildDate = BuildDate
	VersionInfo.GitCommit = GitCommit

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(commonerrors.GetExitCode(err))
	}
}

func init() {
	// Flag parse errors exit with the usage status, not the generic one
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return commonerrors.ErrUsage.WithCause(err)
	})

	cli.RegisterConfigFlag(rootCmd, &cfgFile, "~/.config/sdforge/sdforge.yaml")

	// Logging flags (using common helper)
	cli.RegisterLogFlags(rootCmd)

	rootCmd.PersistentFlags().String("workspace", ".", "Workspace root holding repositories/, build/ and logs/")
	rootCmd.PersistentFlags().String("overlay-dir", "kernel_config", "Directory with the board defconfig and prebuilt boot files")
	rootCmd.PersistentFlags().String("mount-point", "/mnt", "Mount point used while populating the card")
	rootCmd.PersistentFlags().String("board", board.Default().Name, "Board profile to build for")

	_ = viper.BindPFlag("build.workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("build.overlay_dir", rootCmd.PersistentFlags().Lookup("overlay-dir"))
	_ = viper.BindPFlag("build.mount_point", rootCmd.PersistentFlags().Lookup("mount-point"))
	_ = viper.BindPFlag("build.board", rootCmd.PersistentFlags().Lookup("board"))

	// Set defaults
	viper.SetDefault("build.workspace", ".")
	viper.SetDefault("build.overlay_dir", "kernel_config")
	viper.SetDefault("build.mount_point", "/mnt")
	viper.SetDefault("build.board", board.Default().Name)
	viper.SetDefault("rootfs.hostname", "")
	viper.SetDefault("rootfs.root_password", "")
	viper.SetDefault("state.path", state.DefaultPath)

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables if set
func initConfig() error {
	opts := cli.DefaultConfigOptions("sdforge", "SDFORGE")
	opts.ConfigFile = cfgFile
	if err := cli.InitConfig(opts); err != nil {
		return commonerrors.ErrConfigLoad.WithCause(err)
	}

	log = cli.InitLogger("sdforge")
	fanOutLogger(log)

	if viper.ConfigFileUsed() != "" {
		log.Debug("Using config file", "file", viper.ConfigFileUsed())
	}
	return nil
}

// fanOutLogger hands the configured logger to every package.
func fanOutLogger(l *logs.Logger) {
	runner.SetLogger(l)
	setup.SetLogger(l)
	source.SetLogger(l)
	disk.SetLogger(l)
	rootfs.SetLogger(l)
	install.SetLogger(l)
	build.SetLogger(l)
	state.SetLogger(l)
}

// selectedProfile resolves the board profile from the config.
func selectedProfile() (*board.Profile, error) {
	return board.Lookup(viper.GetString("build.board"))
}

// workspaceLayout resolves the workspace root and the directories under it.
func workspaceLayout() (workspaceDir, reposDir string) {
	workspaceDir = cli.GetExpandedString("build.workspace")
	reposDir = filepath.Join(workspaceDir, "repositories")
	return workspaceDir, reposDir
}

// mirrorsFromConfig reads the source.mirrors table: per-repository
// tarball URLs with optional sha256 sums, used instead of git clones.
func mirrorsFromConfig() map[string]source.Archive {
	mirrors := map[string]source.Archive{}
	for name := range viper.GetStringMap("source.mirrors") {
		key := "source.mirrors." + name
		url := viper.GetString(key + ".url")
		if url == "" {
			continue
		}
		mirrors[name] = source.Archive{
			URL:    url,
			SHA256: viper.GetString(key + ".sha256"),
		}
	}
	return mirrors
}

// openLedger opens the run ledger from the configured path.
func openLedger() (*state.Database, error) {
	return state.Open(viper.GetString("state.path"))
}

// expandOverlayDir resolves the overlay directory relative to the
// workspace when it is not absolute.
func expandOverlayDir(workspaceDir string) string {
	dir := cli.GetExpandedString("build.overlay_dir")
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(workspaceDir, dir)
	}
	return paths.Expand(dir)
}
