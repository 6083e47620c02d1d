package extraction

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
)

// RetentionDays is how long run output directories are kept.
const RetentionDays = 7

// runDirDateLayout matches the timestamped run directory names produced by the
// extract command, e.g. 20260817_153012.
const runDirDateLayout = "20060102"

// SweepExpired deletes run directories under root whose name-encoded date is
// more than RetentionDays before now. Directories that don't carry a date
// prefix are left alone. Must not run concurrently with an active extraction
// writing into the same root.
func SweepExpired(ctx context.Context, root string, now time.Time) error {
	ctx, span := tracer.Start(ctx, "extraction:SweepExpired")
	defer span.End()

	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list downloads root")
		return err
	}

	horizon := now.AddDate(0, 0, -RetentionDays)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		datePart, _, _ := strings.Cut(entry.Name(), "_")
		dirDate, err := time.Parse(runDirDateLayout, datePart)
		if err != nil {
			continue
		}
		if !dirDate.Before(horizon) {
			continue
		}

		path := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			span.RecordError(err)
			slog.WarnContext(ctx, "failed to remove expired run directory",
				"dir", path, "err", err)
			continue
		}
		slog.InfoContext(ctx, "removed expired run directory", "dir", path)
	}
	return nil
}
