package xlsxio

import (
	"context"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("xlsxio")

// ReadIdentifiers reads the given column from every sheet of a workbook and
// returns the trimmed, deduplicated values in first-seen order. Sheets without
// the column are skipped, as are empty cells.
func ReadIdentifiers(ctx context.Context, path, column string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "xlsxio:ReadIdentifiers")
	defer span.End()

	file, err := excelize.OpenFile(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open workbook")
		return nil, err
	}
	defer file.Close()

	seen := map[string]bool{}
	var identifiers []string

	for _, sheet := range file.GetSheetList() {
		rows, err := file.GetRows(sheet)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read sheet")
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}

		col := -1
		for i, header := range rows[0] {
			if strings.TrimSpace(header) == column {
				col = i
				break
			}
		}
		if col < 0 {
			continue
		}

		for _, row := range rows[1:] {
			if col >= len(row) {
				continue
			}
			value := strings.TrimSpace(row[col])
			if value == "" || seen[value] {
				continue
			}
			seen[value] = true
			identifiers = append(identifiers, value)
		}
	}

	span.SetAttributes(attribute.Int("identifiers", len(identifiers)))
	return identifiers, nil
}
