package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		short, _ := cmd.Flags().GetBool("short")
		if short {
			fmt.Println(VersionInfo.Short())
			return nil
		}
		fmt.Println(VersionInfo.Full())
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("short", false, "Print only the version number")
}
