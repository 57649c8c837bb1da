package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore saves report files in a fixed directory on local disk.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the upload directory if missing.
func NewDiskStore(dir string) (*DiskStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save writes the blob under the generated name.
func (d *DiskStore) Save(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	target, err := d.path(name)
	if err != nil {
		return err
	}
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Open returns a reader over the stored blob.
func (d *DiskStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	target, err := d.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Delete removes the blob. A missing file is not an error.
func (d *DiskStore) Delete(_ context.Context, name string) error {
	target, err := d.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// path confines access to the store directory. Names are server-generated,
// so anything with a separator is refused outright.
func (d *DiskStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return filepath.Join(d.dir, name), nil
}
