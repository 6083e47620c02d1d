package commands

import (
	"log/slog"
	"path/filepath"

	"matextract-backend/lib/serviceutil"
	"matextract-backend/services/extraction"
	"matextract-backend/services/report"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report <run-dir>",
	Short: "Recompiles and repackages the summary workbooks for an existing run directory.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		runDir := args[0]

		written, err := report.CompileAll(ctx, runDir)
		if err != nil {
			serviceutil.Fatal("failed to compile summary reports", err)
		}
		if len(written) == 0 {
			slog.InfoContext(ctx, "no readable materials under run directory", "run_dir", runDir)
			return
		}

		zipPath, err := extraction.PackageArchive(ctx, filepath.Join(runDir, report.SummaryDirName))
		if err != nil {
			serviceutil.Fatal("failed to package summary reports", err)
		}
		slog.InfoContext(ctx, "reports packaged", "reports", len(written), "archive", zipPath)
	},
}
