package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	commonerrors "github.com/sdforge/sdforge/src/common/errors"
	"github.com/sdforge/sdforge/src/sdforge/runner"
	"github.com/sdforge/sdforge/src/sdforge/setup"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the preflight checks without building anything",
	Long: `Validates the host environment: internet reachability, overlay files,
the target block device, mount state, build dependencies and sudo
pre-authorization. Nothing is downloaded, built or written.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringP("device", "d", "", "Target block device, e.g. /dev/sda")
	checkCmd.Flags().StringP("defconfig", "c", "", "Kernel defconfig file name in the overlay directory")
}

func runCheck(cmd *cobra.Command, args []string) error {
	device, _ := cmd.Flags().GetString("device")
	defconfig, _ := cmd.Flags().GetString("defconfig")

	if device == "" {
		return commonerrors.ErrUsage.WithMessage("--device is required")
	}

	profile, err := selectedProfile()
	if err != nil {
		return err
	}

	workspaceDir, _ := workspaceLayout()

	checker := setup.NewChecker(runner.NewHostRunner(), profile, setup.Options{
		Device:       device,
		Defconfig:    defconfig,
		OverlayDir:   expandOverlayDir(workspaceDir),
		WorkspaceDir: workspaceDir,
	})

	checks, checkErr := checker.Run(context.Background())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tRESULT\tDETAIL")
	for _, check := range checks {
		result := "ok"
		if !check.OK {
			result = "FAIL"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", check.Name, result, check.Detail)
	}
	w.Flush()

	return checkErr
}
