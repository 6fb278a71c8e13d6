package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// DownloadFunc writes a video to w.
type DownloadFunc func(ctx context.Context, w io.Writer) error

// Save downloads a video to path and hands it to archiver when one is set.
// A failed download leaves no partial file behind. The returned location is
// empty when nothing was archived.
func Save(ctx context.Context, path string, archiver Archiver, meta Metadata, download DownloadFunc) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := download(ctx, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Info().Str("path", path).Str("kind", meta.Kind).Str("id", meta.ID).Msg("Saved video")

	if archiver == nil {
		return "", nil
	}
	loc, err := archiver.Store(ctx, path, meta)
	if err != nil {
		return "", fmt.Errorf("saved locally but archiving failed: %w", err)
	}
	return loc, nil
}
