package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"matextract-backend/lib/configutil"
	"matextract-backend/lib/scrapers/qbportal"
	"matextract-backend/lib/scrapers/quickbase"
	"matextract-backend/lib/serviceutil"
	"matextract-backend/lib/telemetry"
	"matextract-backend/lib/xlsxio"
	"matextract-backend/services/extraction"
	"matextract-backend/services/extraction/runlog"
	"matextract-backend/services/report"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var extractRunlogPath *string

func init() {
	extractRunlogPath = extractCmd.Flags().String(
		"runlog", "runs.db", "path to the run ledger database")
	rootCmd.AddCommand(extractCmd)
}

const runDirLayout = "20060102_150405"

var extractCmd = &cobra.Command{
	Use:   "extract <workbook.xlsx> [workbook.xlsx ...]",
	Short: "Extracts material data for every input workbook, then compiles and packages the summary reports.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		tel, err := telemetry.SetupFromEnv(ctx, "matextract")
		if err != nil && !os.IsNotExist(err) {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		if err == nil {
			defer tel.Shutdown(context.Background())
		}

		config, err := configutil.ReadConfig[extraction.Config]("config.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config.json5", err)
		}
		config = config.WithDefaults()
		if err := config.Validate(); err != nil {
			serviceutil.Fatal("invalid configuration", err)
		}

		if err := extraction.SweepExpired(ctx, config.DownloadsDir, time.Now()); err != nil {
			slog.WarnContext(ctx, "retention sweep failed", "err", err)
		}

		var batches []extraction.Batch
		for _, path := range args {
			identifiers, err := xlsxio.ReadIdentifiers(ctx, path, config.MaterialNumberColumn)
			if err != nil {
				serviceutil.Fatal("failed to read input workbook "+path, err)
			}
			if len(identifiers) == 0 {
				slog.WarnContext(ctx, "workbook has no material numbers, skipping",
					"path", path, "column", config.MaterialNumberColumn)
				continue
			}
			batches = append(batches, extraction.Batch{
				Name:            batchName(path),
				MaterialNumbers: identifiers,
			})
		}
		if len(batches) == 0 {
			slog.InfoContext(ctx, "no data extracted, nothing to do")
			return
		}

		ledger, err := runlog.Open(*extractRunlogPath)
		if err != nil {
			serviceutil.Fatal("failed to open run ledger", err)
		}
		defer ledger.Close()

		runDir := filepath.Join(config.DownloadsDir, time.Now().Format(runDirLayout))
		runId, err := ledger.StartRun(ctx, runDir, time.Now())
		if err != nil {
			serviceutil.Fatal("failed to record run start", err)
		}

		orchestrator := extraction.NewOrchestrator(
			quickbase.NewClient(config.QuickbaseOptions()),
			func(ctx context.Context) (extraction.PortalSession, error) {
				return qbportal.Open(ctx, config.PortalOptions())
			},
		)

		result, err := orchestrator.Run(ctx, batches, runDir)
		for _, outcome := range result.Outcomes {
			if recordErr := ledger.RecordOutcome(ctx, runId, outcome); recordErr != nil {
				slog.WarnContext(ctx, "failed to record outcome",
					"material_number", outcome.MaterialNumber, "err", recordErr)
			}
		}
		if finishErr := ledger.FinishRun(
			ctx, runId, time.Now(), result.Processed(), result.Failed(),
		); finishErr != nil {
			slog.WarnContext(ctx, "failed to record run completion", "err", finishErr)
		}
		if err != nil {
			serviceutil.Fatal("extraction run failed", err)
		}

		renderOutcomes(result)

		if result.Processed() == 0 {
			slog.InfoContext(ctx, "no data extracted, skipping reports", "run_dir", runDir)
			return
		}

		written, err := report.CompileAll(ctx, runDir)
		if err != nil {
			serviceutil.Fatal("failed to compile summary reports", err)
		}
		zipPath, err := extraction.PackageArchive(ctx, filepath.Join(runDir, report.SummaryDirName))
		if err != nil {
			serviceutil.Fatal("failed to package summary reports", err)
		}

		slog.InfoContext(ctx, "run complete",
			"run_id", runId,
			"processed", result.Processed(),
			"failed", result.Failed(),
			"reports", len(written),
			"archive", zipPath)
	},
}

// batchName is the workbook filename without its extension, it doubles as the
// batch's output folder name.
func batchName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func renderOutcomes(result extraction.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Batch", "Material Number", "QA", "Images", "Status"})
	for _, outcome := range result.Outcomes {
		status := "ok"
		if outcome.Err != nil {
			status = outcome.Err.Error()
		}
		t.AppendRow(table.Row{
			outcome.Batch,
			outcome.MaterialNumber,
			outcome.HasQA,
			outcome.Images,
			status,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
