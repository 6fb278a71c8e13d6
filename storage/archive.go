package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"clipstudio/config"
)

// Archiver keeps a copy of a downloaded video somewhere durable and returns
// where it went.
type Archiver interface {
	Store(ctx context.Context, localPath string, meta Metadata) (string, error)
}

// Metadata describes the archived video.
type Metadata struct {
	Kind   string // "clip" or "job"
	ID     string
	Prompt string
}

func (m Metadata) tags() map[string]string {
	tags := map[string]string{}
	if m.Kind != "" {
		tags["kind"] = m.Kind
	}
	if m.ID != "" {
		tags["id"] = m.ID
	}
	return tags
}

// LocalArchiver copies videos into a directory.
type LocalArchiver struct {
	dir string
}

// NewLocalArchiver archives into dir, creating it on first use.
func NewLocalArchiver(dir string) *LocalArchiver {
	return &LocalArchiver{dir: dir}
}

func (a *LocalArchiver) Store(ctx context.Context, localPath string, meta Metadata) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	dest := filepath.Join(a.dir, filepath.Base(localPath))
	if abs, err := filepath.Abs(localPath); err == nil {
		if destAbs, err := filepath.Abs(dest); err == nil && abs == destAbs {
			return dest, nil
		}
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open video: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to copy video: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive file: %w", err)
	}

	log.Info().Str("path", dest).Str("id", meta.ID).Msg("Archived video locally")
	return dest, nil
}

// S3Archiver uploads videos to a bucket under a key prefix.
type S3Archiver struct {
	s3     *S3
	bucket string
	prefix string
}

// NewS3Archiver archives into bucket under prefix.
func NewS3Archiver(s3 *S3, bucket, prefix string) *S3Archiver {
	return &S3Archiver{s3: s3, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key used for a local file.
func (a *S3Archiver) Key(localPath string) string {
	name := filepath.Base(localPath)
	if a.prefix == "" {
		return name
	}
	return path.Join(a.prefix, name)
}

// Store uploads localPath unless an object with the same key already exists.
func (a *S3Archiver) Store(ctx context.Context, localPath string, meta Metadata) (string, error) {
	key := a.Key(localPath)
	location := fmt.Sprintf("s3://%s/%s", a.bucket, key)

	exists, err := a.s3.Exists(ctx, a.bucket, key)
	if err != nil {
		return "", fmt.Errorf("failed to check %s: %w", location, err)
	}
	if exists {
		log.Info().Str("location", location).Msg("Video already archived")
		return location, nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	if err := a.s3.Put(ctx, a.bucket, key, f, "video/mp4", meta.tags()); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", location, err)
	}

	log.Info().Str("location", location).Str("id", meta.ID).Msg("Archived video to S3")
	return location, nil
}

// Multi stores to every archiver in order and returns all locations. It
// stops at the first failure.
type Multi []Archiver

func (m Multi) Store(ctx context.Context, localPath string, meta Metadata) (string, error) {
	var locations []string
	for _, a := range m {
		loc, err := a.Store(ctx, localPath, meta)
		if err != nil {
			return strings.Join(locations, ", "), err
		}
		locations = append(locations, loc)
	}
	return strings.Join(locations, ", "), nil
}

// New builds the archivers enabled in cfg. It returns nil when archiving is
// off.
func New(ctx context.Context, cfg config.Archive) (Archiver, error) {
	var m Multi
	if cfg.Dir != "" {
		m = append(m, NewLocalArchiver(cfg.Dir))
	}
	if cfg.S3Bucket != "" {
		client, err := NewS3(ctx, S3Config{
			Region:       cfg.S3Region,
			Profile:      cfg.S3Profile,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		m = append(m, NewS3Archiver(client, cfg.S3Bucket, cfg.S3Prefix))
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
