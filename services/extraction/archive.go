package extraction

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PackageArchive compresses a directory into a sibling zip named after it,
// replacing any previous archive of the same name. Returns the archive path.
func PackageArchive(ctx context.Context, dir string) (string, error) {
	ctx, span := tracer.Start(ctx, "extraction:PackageArchive")
	defer span.End()
	span.SetAttributes(attribute.String("dir", dir))

	zipPath := dir + ".zip"
	if err := os.Remove(zipPath); err != nil && !os.IsNotExist(err) {
		return "", err
	}

	out, err := os.Create(zipPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create archive")
		return "", err
	}
	defer out.Close()

	writer := zip.NewWriter(out)

	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		dst, err := writer.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(dst, src)
		return err
	})
	if err != nil {
		writer.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add files to archive")
		return "", fmt.Errorf("package %s: %w", dir, err)
	}

	if err := writer.Close(); err != nil {
		span.RecordError(err)
		return "", err
	}
	return zipPath, nil
}
