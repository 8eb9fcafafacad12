package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdforge/sdforge/src/sdforge/state"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past build runs",
	Long: `Lists recorded build runs, newest first. With a run ID argument it
shows the per-stage outcomes of that run instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	db, err := openLedger()
	if err != nil {
		return err
	}
	defer db.Close()

	runs := state.NewRunRepository(db)

	if len(args) == 1 {
		return printStages(runs, args[0])
	}

	limit, _ := cmd.Flags().GetInt("limit")
	return printRuns(runs, limit)
}

func printRuns(runs *state.RunRepository, limit int) error {
	list, err := runs.List(limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDEVICE\tBOARD\tDEFCONFIG\tSTATUS")
	for _, run := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID,
			run.StartedAt.Format(time.RFC3339),
			run.Device,
			run.Board,
			run.Defconfig,
			run.Status)
	}
	return w.Flush()
}

func printStages(runs *state.RunRepository, runID string) error {
	records, err := runs.Stages(runID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Printf("No stage records for run %s\n", runID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tSTATUS\tDURATION\tERROR")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			rec.Stage,
			rec.Status,
			rec.Duration.Round(time.Millisecond),
			rec.ErrorMessage)
	}
	return w.Flush()
}
