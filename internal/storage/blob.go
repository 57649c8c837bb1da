// Package storage persists uploaded report files under server-generated
// names, either on local disk or in a MinIO/S3 bucket.
package storage

import (
	"context"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// BlobStore provides access to stored report files by generated name.
type BlobStore interface {
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete is idempotent: removing a missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

var safeExt = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// NewStoredName returns a collision-resistant filename for an upload. The
// name is independent of user input except for a sanitized extension, so
// user-supplied filenames can neither collide nor traverse paths.
func NewStoredName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	return uuid.NewString() + ext
}
