package commands

import (
	"os"
	"strconv"

	"matextract-backend/lib/serviceutil"
	"matextract-backend/services/extraction/runlog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runsRunlogPath *string

func init() {
	runsRunlogPath = runsCmd.Flags().String(
		"runlog", "runs.db", "path to the run ledger database")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs <run-id>",
	Short: "Shows the recorded outcomes of a past extraction run.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		runId, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			serviceutil.Fatal("run id must be an integer", err)
		}

		ledger, err := runlog.Open(*runsRunlogPath)
		if err != nil {
			serviceutil.Fatal("failed to open run ledger", err)
		}
		defer ledger.Close()

		run, err := ledger.GetRun(ctx, runId)
		if err != nil {
			serviceutil.Fatal("failed to load run", err)
		}
		outcomes, err := ledger.ListOutcomes(ctx, runId)
		if err != nil {
			serviceutil.Fatal("failed to load run outcomes", err)
		}

		info := table.NewWriter()
		info.SetOutputMirror(os.Stdout)
		info.AppendRows([]table.Row{
			{"Run", run.Id},
			{"Output", run.OutputDir},
			{"Started", run.StartedAt.Format("2006-01-02 15:04:05")},
			{"Finished", run.FinishedAt.Format("2006-01-02 15:04:05")},
			{"Processed", run.Processed},
			{"Failed", run.Failed},
		})
		info.SetStyle(table.StyleRounded)
		info.Render()

		results := table.NewWriter()
		results.SetOutputMirror(os.Stdout)
		results.AppendHeader(table.Row{"Batch", "Material Number", "QA", "Images", "Error"})
		for _, outcome := range outcomes {
			results.AppendRow(table.Row{
				outcome.Batch,
				outcome.MaterialNumber,
				outcome.HasQA,
				outcome.Images,
				outcome.Error,
			})
		}
		results.SetStyle(table.StyleRounded)
		results.Render()
	},
}
