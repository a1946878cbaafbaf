package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// Local provides a file-based storage backend on the local filesystem.
// Relative paths are resolved against basePath; an empty basePath leaves
// them relative to the working directory.
type Local struct {
	basePath string
}

// NewLocal creates a new Local storage rooted at basePath.
func NewLocal(basePath string) *Local {
	return &Local{basePath: basePath}
}

// Save writes src to dir/filename, replacing any existing file.
//
// The content is first written to a temporary file in dir and renamed into
// place, so the destination either holds the complete new content or is left
// untouched. The directory must already exist.
func (s *Local) Save(ctx context.Context, dir, filename string, src io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir = s.resolve(dir)
	dstPath := filepath.Join(dir, filename)

	tmp, err := os.CreateTemp(dir, "."+filename+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", dstPath, err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		err = multierr.Combine(err, tmp.Close(), os.Remove(tmpPath))
		return "", fmt.Errorf("failed to save file %s: %w", dstPath, err)
	}

	if err := tmp.Close(); err != nil {
		err = multierr.Append(err, os.Remove(tmpPath))
		return "", fmt.Errorf("failed to save file %s: %w", dstPath, err)
	}

	// CreateTemp opens with 0600.
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		err = multierr.Append(err, os.Remove(tmpPath))
		return "", fmt.Errorf("failed to save file %s: %w", dstPath, err)
	}

	if err := os.Rename(tmpPath, dstPath); err != nil {
		err = multierr.Append(err, os.Remove(tmpPath))
		return "", fmt.Errorf("failed to save file %s: %w", dstPath, err)
	}

	return dstPath, nil
}

// Load opens the file and returns a reader.
func (s *Local) Load(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}

	return f, nil
}

// Delete removes the file from storage.
func (s *Local) Delete(_ context.Context, path string) error {
	return os.Remove(s.resolve(path))
}

func (s *Local) resolve(path string) string {
	if s.basePath == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(s.basePath, path)
}
