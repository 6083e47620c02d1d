package report

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"matextract-backend/lib/telemetry"
	"matextract-backend/services/extraction"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func pngBytes(t *testing.T) []byte {
	var buf bytes.Buffer
	err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2)))
	require.NoError(t, err)
	return buf.Bytes()
}

func writeMaterial(t *testing.T, batchDir string, material extraction.Material, images ...string) {
	materialDir := extraction.MaterialDir(batchDir, material.MaterialNumber)
	require.NoError(t, os.MkdirAll(extraction.ImagesDir(materialDir), 0755))
	require.NoError(t, extraction.WriteSnapshot(material, materialDir))
	for _, name := range images {
		path := filepath.Join(extraction.ImagesDir(materialDir), name)
		require.NoError(t, os.WriteFile(path, pngBytes(t), 0644))
	}
}

func TestCompileBatch(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:report")
	defer cleanup()

	runDir := t.TempDir()
	batchDir := filepath.Join(runDir, "orders")

	writeMaterial(t, batchDir, extraction.Material{
		MaterialNumber:     "123",
		ComponentId:        "4518",
		Cost:               "3.25",
		SupplierName:       "Acme",
		SupplierMaterialNo: "AC-99",
		QARequirements: map[string]any{
			"X-Ray":    true,
			"Drop":     false,
			"Comments": "fragile",
		},
	}, "image_1.png", "image_2.png")

	writeMaterial(t, batchDir, extraction.Material{MaterialNumber: "456"})

	// an unreadable snapshot is skipped, not fatal
	brokenDir := extraction.MaterialDir(batchDir, "789")
	require.NoError(t, os.MkdirAll(brokenDir, 0755))
	require.NoError(t, os.WriteFile(
		extraction.SnapshotPath(brokenDir, "789"), []byte("{not json"), 0644))

	outPath := filepath.Join(runDir, "orders_summary.xlsx")
	rows, err := CompileBatch(context.Background(), batchDir, outPath)
	require.NoError(t, err)
	require.Equal(t, 2, rows)

	file, err := excelize.OpenFile(outPath)
	require.NoError(t, err)
	defer file.Close()

	header, err := file.GetCellValue("Materials", "A1")
	require.NoError(t, err)
	require.Equal(t, "Material Number", header)

	number, err := file.GetCellValue("Materials", "A2")
	require.NoError(t, err)
	require.Equal(t, "123", number)
	qa, err := file.GetCellValue("Materials", "F2")
	require.NoError(t, err)
	require.Equal(t, "X-Ray\nComments: fragile", qa)

	pictures, err := file.GetPictures("Materials", "G2")
	require.NoError(t, err)
	require.Len(t, pictures, 1)

	// 456 had no backend data, its row is present with blank cells
	number, err = file.GetCellValue("Materials", "A3")
	require.NoError(t, err)
	require.Equal(t, "456", number)
	supplier, err := file.GetCellValue("Materials", "D3")
	require.NoError(t, err)
	require.Empty(t, supplier)
}

func TestCompileBatchNothingReadable(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:report")
	defer cleanup()

	runDir := t.TempDir()
	batchDir := filepath.Join(runDir, "empty")
	require.NoError(t, os.MkdirAll(batchDir, 0755))

	outPath := filepath.Join(runDir, "empty_summary.xlsx")
	rows, err := CompileBatch(context.Background(), batchDir, outPath)
	require.NoError(t, err)
	require.Zero(t, rows)
	require.NoFileExists(t, outPath)
}

func TestCompileAll(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:report")
	defer cleanup()

	runDir := t.TempDir()
	writeMaterial(t, filepath.Join(runDir, "orders"), extraction.Material{MaterialNumber: "123"})
	writeMaterial(t, filepath.Join(runDir, "restock"), extraction.Material{MaterialNumber: "456"})
	require.NoError(t, os.MkdirAll(filepath.Join(runDir, "barren"), 0755))

	written, err := CompileAll(context.Background(), runDir)
	require.NoError(t, err)
	require.Len(t, written, 2)
	require.FileExists(t, filepath.Join(runDir, SummaryDirName, "orders_summary.xlsx"))
	require.FileExists(t, filepath.Join(runDir, SummaryDirName, "restock_summary.xlsx"))
	require.NoFileExists(t, filepath.Join(runDir, SummaryDirName, "barren_summary.xlsx"))
}

func TestFormatQARequirements(t *testing.T) {
	require.Empty(t, FormatQARequirements(nil))
	require.Empty(t, FormatQARequirements(map[string]any{"Drop": false}))

	rendered := FormatQARequirements(map[string]any{
		"Salt Spray":       true,
		"X-Ray":            true,
		"Drop":             false,
		"Additional Tests": "UV exposure",
		"Comments":         "",
	})
	require.Equal(t, "Salt Spray\nX-Ray\nAdditional Tests: UV exposure", rendered)
}
