package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sdforge/sdforge/src/common/paths"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the workspace directories",
	Long: `Removes the repositories/, build/ and logs/ directories under the
workspace root. Cloned source trees and build output are lost; the next
build starts from scratch.`,
	RunE: runClean,
}

func runClean(cmd *cobra.Command, args []string) error {
	workspaceDir, _ := workspaceLayout()

	for _, name := range []string{"repositories", "build", "logs"} {
		dir := filepath.Join(workspaceDir, name)
		if !paths.Exists(dir) {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
		log.Info("Removed", "dir", dir)
	}
	return nil
}
