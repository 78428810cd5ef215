// Package local implements storage.Storage on the local filesystem.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kbukum/photoflow/logger"
	"github.com/kbukum/photoflow/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderLocal, func(_ context.Context, cfg storage.Config, _ *logger.Logger) (storage.Storage, error) {
		return NewStorage(cfg.BasePath)
	})
}

// Storage implements storage.Storage using the local filesystem.
type Storage struct {
	basePath string
}

// NewStorage creates a local filesystem storage rooted at basePath,
// creating the directory if needed.
func NewStorage(basePath string) (*Storage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create base directory: %w", err)
	}
	return &Storage{basePath: abs}, nil
}

// BasePath returns the absolute root directory.
func (s *Storage) BasePath() string { return s.basePath }

// resolve maps a relative object path to a file below the root. Paths
// that would escape the root are rejected.
func (s *Storage) resolve(path string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(path))
	if rel == "." || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: invalid path %q", path)
	}
	return filepath.Join(s.basePath, rel), nil
}

// Upload writes data from reader to a local file. The data lands in a
// temporary sibling first and is renamed into place, so a failed write
// never leaves a truncated file behind.
func (s *Storage) Upload(_ context.Context, path string, reader io.Reader) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("storage: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("storage: create file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close() //nolint:errcheck,gosec // write error takes precedence
		return fmt.Errorf("storage: write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("storage: rename file: %w", err)
	}
	return nil
}

// Download returns a reader for the local file at the given path.
func (s *Storage) Download(_ context.Context, path string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage: file not found: %s", path)
		}
		return nil, fmt.Errorf("storage: open file: %w", err)
	}
	return f, nil
}

// Delete removes a local file. Returns nil if the file does not exist.
func (s *Storage) Delete(_ context.Context, path string) error {
	fullPath, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete file: %w", err)
	}
	return nil
}

// Exists checks whether a local file exists.
func (s *Storage) Exists(_ context.Context, path string) (bool, error) {
	fullPath, err := s.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("storage: stat file: %w", err)
	}
	return true, nil
}

// List returns metadata for all files whose slash-separated relative path
// starts with prefix.
func (s *Storage) List(_ context.Context, prefix string) ([]storage.FileInfo, error) {
	var files []storage.FileInfo

	err := filepath.WalkDir(s.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, storage.FileInfo{
			Path:         rel,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return []storage.FileInfo{}, nil
		}
		return nil, fmt.Errorf("storage: list files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// Ping checks that the root still exists and accepts new files.
func (s *Storage) Ping(_ context.Context) error {
	info, err := os.Stat(s.basePath)
	if err != nil {
		return fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage: root %s is not a directory", s.basePath)
	}
	probe, err := os.CreateTemp(s.basePath, ".ping-*")
	if err != nil {
		return fmt.Errorf("storage: root not writable: %w", err)
	}
	name := probe.Name()
	probe.Close() //nolint:errcheck,gosec // empty probe file
	return os.Remove(name)
}

// compile-time check
var _ storage.Storage = (*Storage)(nil)
