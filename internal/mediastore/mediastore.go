// Package mediastore uploads user media and returns publicly reachable URLs.
package mediastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmptyFilename indicates no filename was supplied with the upload.
	ErrEmptyFilename = errors.New("mediastore.empty_filename")
	// ErrEmptyBody indicates the upload had no readable content.
	ErrEmptyBody = errors.New("mediastore.empty_body")
)

// MediaStore accepts an uploaded file and returns its public URL.
type MediaStore interface {
	Save(ctx context.Context, filename string, contentType string, content io.Reader) (string, error)
}

// objectKey derives a collision-free storage key that keeps the original
// extension so content sniffing downstream stays honest.
func objectKey(filename string) string {
	now := time.Now().UTC()
	return fmt.Sprintf("uploads/%d/%02d/%s%s", now.Year(), now.Month(), uuid.NewString(), path.Ext(filename))
}
