// Package report compiles persisted material directories into per-batch
// spreadsheet summaries. It only reads what the extraction service wrote, it
// never talks to the portal or the backend.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"matextract-backend/services/extraction"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/report")

const (
	SummaryDirName = "summary"
	summarySuffix  = "_summary.xlsx"
	sheetName      = "Materials"
)

var headers = []any{
	"Material Number",
	"Component ID",
	"Cost",
	"Supplier Name",
	"Supplier Material NO",
	"QA Requirements (True)",
	"Image",
}

// CompileAll builds one summary workbook per batch folder under runDir and
// writes them into runDir/summary. Batches with zero readable entries are
// skipped, not errors. Returns the workbook paths written.
func CompileAll(ctx context.Context, runDir string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "report:CompileAll")
	defer span.End()

	entries, err := os.ReadDir(runDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list run directory")
		return nil, err
	}

	summaryDir := filepath.Join(runDir, SummaryDirName)
	if err := os.MkdirAll(summaryDir, 0755); err != nil {
		span.RecordError(err)
		return nil, err
	}

	var written []string
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == SummaryDirName {
			continue
		}
		batchDir := filepath.Join(runDir, entry.Name())
		outPath := filepath.Join(summaryDir, entry.Name()+summarySuffix)

		rows, err := CompileBatch(ctx, batchDir, outPath)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to compile batch")
			return written, err
		}
		if rows == 0 {
			slog.InfoContext(ctx, "no readable materials in batch, skipping report",
				"batch", entry.Name())
			continue
		}
		slog.InfoContext(ctx, "summary written", "path", outPath, "rows", rows)
		written = append(written, outPath)
	}
	return written, nil
}

type row struct {
	material  extraction.Material
	imagePath string
}

// CompileBatch reads every material directory in one batch folder and writes
// the summary workbook. Unreadable snapshots are logged and skipped. Returns
// the number of rows written, zero means no workbook was produced.
func CompileBatch(ctx context.Context, batchDir, outPath string) (int, error) {
	ctx, span := tracer.Start(ctx, "report:CompileBatch")
	defer span.End()
	span.SetAttributes(attribute.String("batch_dir", batchDir))

	entries, err := os.ReadDir(batchDir)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	var rows []row
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "material_") {
			continue
		}
		materialNumber := strings.TrimPrefix(entry.Name(), "material_")
		materialDir := filepath.Join(batchDir, entry.Name())

		material, err := extraction.ReadSnapshot(extraction.SnapshotPath(materialDir, materialNumber))
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable material snapshot",
				"dir", materialDir, "err", err)
			continue
		}

		rows = append(rows, row{
			material:  material,
			imagePath: firstImage(extraction.ImagesDir(materialDir)),
		})
	}

	if len(rows) == 0 {
		return 0, nil
	}

	if err := writeWorkbook(ctx, rows, outPath); err != nil {
		span.RecordError(err)
		return 0, err
	}
	return len(rows), nil
}

// firstImage returns the lexicographically first regular file in the images
// directory, or "" when there is none.
func firstImage(imagesDir string) string {
	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			return filepath.Join(imagesDir, entry.Name())
		}
	}
	return ""
}

func writeWorkbook(ctx context.Context, rows []row, outPath string) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	if err := file.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return err
	}

	widths := map[string]float64{
		"A": 18, "B": 15, "C": 10, "D": 40, "E": 20, "F": 60, "G": 20,
	}
	for col, width := range widths {
		if err := file.SetColWidth(sheetName, col, col, width); err != nil {
			return err
		}
	}

	wrapStyle, err := file.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return err
	}

	for i, r := range rows {
		rowIdx := i + 2
		material := r.material

		cells := []any{
			material.MaterialNumber,
			material.ComponentId,
			material.Cost,
			material.SupplierName,
			material.SupplierMaterialNo,
			FormatQARequirements(material.QARequirements),
		}
		cell := fmt.Sprintf("A%d", rowIdx)
		if err := file.SetSheetRow(sheetName, cell, &cells); err != nil {
			return err
		}

		qaCell := fmt.Sprintf("F%d", rowIdx)
		if err := file.SetCellStyle(sheetName, qaCell, qaCell, wrapStyle); err != nil {
			return err
		}

		if r.imagePath == "" {
			continue
		}
		imageCell := fmt.Sprintf("G%d", rowIdx)
		err := file.AddPicture(sheetName, imageCell, r.imagePath, &excelize.GraphicOptions{
			AutoFit: true,
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to embed image",
				"path", r.imagePath, "err", err)
			continue
		}
		if err := file.SetRowHeight(sheetName, rowIdx, 100); err != nil {
			return err
		}
	}

	return file.SaveAs(outPath)
}

// FormatQARequirements renders the passed tests as a newline-joined list:
// true booleans by name in sorted order, then the free-text fields when they
// carry anything.
func FormatQARequirements(requirements map[string]any) string {
	if len(requirements) == 0 {
		return ""
	}

	var lines []string
	for name, value := range requirements {
		if passed, ok := value.(bool); ok && passed {
			lines = append(lines, name)
		}
	}
	sort.Strings(lines)

	for _, key := range []string{"Additional Tests", "Comments"} {
		if text, ok := requirements[key].(string); ok && text != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", key, text))
		}
	}

	return strings.Join(lines, "\n")
}
