package pose

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Dir serves weight objects from a local directory tree, for deployments
// without object storage
type Dir string

// DownloadFile copies root/objectName to filePath
func (d Dir) DownloadFile(ctx context.Context, objectName, filePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(filepath.Join(string(d), filepath.FromSlash(objectName)))
	if err != nil {
		return fmt.Errorf("failed to open weights: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filePath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy weights: %w", err)
	}
	return dst.Close()
}
