package xlsxio

import (
	"context"
	"path/filepath"
	"testing"

	"matextract-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, path string, sheets map[string][][]any) {
	file := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		if first {
			err := file.SetSheetName("Sheet1", name)
			require.NoError(t, err)
			first = false
		} else {
			_, err := file.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			err = file.SetSheetRow(name, cell, &row)
			require.NoError(t, err)
		}
	}
	require.NoError(t, file.SaveAs(path))
}

func TestReadIdentifiers(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:xlsxio")
	defer cleanup()

	path := filepath.Join(t.TempDir(), "materials.xlsx")
	writeWorkbook(t, path, map[string][][]any{
		"Materials": {
			{"NPR Material Number", "Description"},
			{"123", "widget"},
			{" 123 ", "duplicate with whitespace"},
			{"456", "gadget"},
			{"", "blank identifier"},
		},
	})

	ids, err := ReadIdentifiers(context.Background(), path, "NPR Material Number")
	require.NoError(t, err)
	require.Equal(t, []string{"123", "456"}, ids)
}

func TestReadIdentifiersAcrossSheets(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:xlsxio")
	defer cleanup()

	path := filepath.Join(t.TempDir(), "materials.xlsx")

	file := excelize.NewFile()
	require.NoError(t, file.SetSheetName("Sheet1", "A"))
	require.NoError(t, file.SetSheetRow("A", "A1", &[]any{"NPR Material Number"}))
	require.NoError(t, file.SetSheetRow("A", "A2", &[]any{"123"}))
	_, err := file.NewSheet("B")
	require.NoError(t, err)
	require.NoError(t, file.SetSheetRow("B", "A1", &[]any{"NPR Material Number"}))
	require.NoError(t, file.SetSheetRow("B", "A2", &[]any{"123"}))
	require.NoError(t, file.SetSheetRow("B", "A3", &[]any{"789"}))
	_, err = file.NewSheet("Unrelated")
	require.NoError(t, err)
	require.NoError(t, file.SetSheetRow("Unrelated", "A1", &[]any{"Other Column"}))
	require.NoError(t, file.SetSheetRow("Unrelated", "A2", &[]any{"999"}))
	require.NoError(t, file.SaveAs(path))

	ids, err := ReadIdentifiers(context.Background(), path, "NPR Material Number")
	require.NoError(t, err)
	require.Equal(t, []string{"123", "789"}, ids)
}

func TestReadIdentifiersMissingFile(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:xlsxio")
	defer cleanup()

	_, err := ReadIdentifiers(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"), "NPR Material Number")
	require.Error(t, err)
}
