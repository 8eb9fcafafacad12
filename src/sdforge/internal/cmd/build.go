package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	commonerrors "github.com/sdforge/sdforge/src/common/errors"
	"github.com/sdforge/sdforge/src/sdforge/build"
	"github.com/sdforge/sdforge/src/sdforge/rootfs"
	"github.com/sdforge/sdforge/src/sdforge/runner"
	"github.com/sdforge/sdforge/src/sdforge/state"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build and write a bootable card end to end",
	Long: `Runs the full pipeline: preflight checks, source fetch, firmware and
kernel builds, card partitioning, root filesystem bootstrap and artifact
installation.

The device given with --device is wiped. With --dry-run every external
command is printed instead of executed and nothing is modified.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringP("device", "d", "", "Target block device, e.g. /dev/sda (wiped!)")
	buildCmd.Flags().StringP("defconfig", "c", "", "Kernel defconfig file name in the overlay directory")
	buildCmd.Flags().Bool("dry-run", false, "Print external commands instead of executing them")
	buildCmd.Flags().Bool("clean", false, "Replace a pre-existing build directory")
	buildCmd.Flags().Bool("skip-rootfs", false, "Leave the root partition formatted but empty")
	buildCmd.Flags().Bool("install-deps", false, "Install missing build dependencies via apt-get")
	buildCmd.Flags().Bool("teardown", false, "Remove the workspace after a successful run")
}

func runBuild(cmd *cobra.Command, args []string) error {
	device, _ := cmd.Flags().GetString("device")
	defconfig, _ := cmd.Flags().GetString("defconfig")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	clean, _ := cmd.Flags().GetBool("clean")
	skipRootfs, _ := cmd.Flags().GetBool("skip-rootfs")
	installDeps, _ := cmd.Flags().GetBool("install-deps")
	teardown, _ := cmd.Flags().GetBool("teardown")

	if device == "" {
		return commonerrors.ErrUsage.WithMessage("--device is required")
	}

	profile, err := selectedProfile()
	if err != nil {
		return err
	}

	sc, err := newStageContext(device, defconfig, dryRun)
	if err != nil {
		return err
	}
	sc.SkipRootfs = skipRootfs
	sc.AutoInstall = installDeps
	sc.Teardown = teardown
	sc.Clean = clean

	if !skipRootfs && !dryRun {
		password, err := resolveRootPassword()
		if err != nil {
			return err
		}
		sc.RootPassword = password
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc.Nproc = build.DetectNproc(ctx, sc.Runner)

	var recorder build.Recorder
	var runs *state.RunRepository
	if !dryRun {
		db, err := openLedger()
		if err != nil {
			return err
		}
		defer db.Close()

		runs = state.NewRunRepository(db)
		runID, err := runs.CreateRun(device, profile.Name, sc.EffectiveDefconfig())
		if err != nil {
			return err
		}
		sc.RunID = runID
		recorder = runs
	}

	log.Info("Starting build",
		"board", profile.Name,
		"device", device,
		"defconfig", sc.EffectiveDefconfig(),
		"jobs", sc.Nproc,
		"dry-run", dryRun)

	pipeline := build.NewPipeline(build.DefaultStages(), recorder)
	runErr := pipeline.Run(ctx, sc)

	if runs != nil {
		if runErr != nil {
			if err := runs.FailRun(sc.RunID, runErr); err != nil {
				log.Warn("Failed to record run outcome", "error", err)
			}
		} else if err := runs.CompleteRun(sc.RunID); err != nil {
			log.Warn("Failed to record run outcome", "error", err)
		}
	}

	if runErr != nil {
		return runErr
	}

	if dryRun {
		printDryRunPlan(sc.Runner)
		return nil
	}

	log.Info("Card ready", "device", device)
	return nil
}

// newStageContext assembles the pipeline context shared by build and check.
func newStageContext(device, defconfig string, dryRun bool) (*build.StageContext, error) {
	profile, err := selectedProfile()
	if err != nil {
		return nil, err
	}

	if hostname := viper.GetString("rootfs.hostname"); hostname != "" {
		override := *profile
		override.Rootfs.Hostname = hostname
		profile = &override
	}

	workspaceDir, reposDir := workspaceLayout()

	var run runner.Runner
	if dryRun {
		run = runner.NewDryRunner()
	} else {
		run = runner.NewHostRunner()
	}

	return &build.StageContext{
		Device:       device,
		Defconfig:    defconfig,
		Profile:      profile,
		WorkspaceDir: workspaceDir,
		ReposDir:     reposDir,
		OverlayDir:   expandOverlayDir(workspaceDir),
		MountPoint:   viper.GetString("build.mount_point"),
		Runner:       run,
		Nproc:        1,
		Mirrors:      mirrorsFromConfig(),
	}, nil
}

// resolveRootPassword takes the password from the config when set, and
// prompts on the terminal otherwise.
func resolveRootPassword() (string, error) {
	if password := viper.GetString("rootfs.root_password"); password != "" {
		return password, nil
	}
	return rootfs.PromptPassword()
}

// printDryRunPlan prints every command the run would have executed.
func printDryRunPlan(run runner.Runner) {
	dry, ok := run.(*runner.DryRunner)
	if !ok {
		return
	}
	log.Info("Dry run complete", "commands", len(dry.Recorded))
	for _, line := range dry.Lines() {
		os.Stdout.WriteString(line + "\n")
	}
}
