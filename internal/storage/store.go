// Package storage parks uploaded files so later generation requests can
// reference them by ID instead of re-uploading.
//
// Three backends implement Store: an in-process map, a PostgreSQL table and a
// Google Cloud Storage bucket. All of them enforce the same size limit and
// hand out UUIDv4 identifiers.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no blob has the requested ID.
	ErrNotFound = errors.New("blob not found")

	// ErrTooLarge is returned when a blob exceeds the store's size limit.
	ErrTooLarge = errors.New("blob too large")
)

const defaultContentType = "application/octet-stream"

// Meta describes a stored blob.
type Meta struct {
	OriginalName string    `json:"originalName"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// Blob is a stored file and its metadata.
type Blob struct {
	Data []byte `json:"-"`
	Meta Meta   `json:"meta"`
}

// Store persists blobs.
type Store interface {
	// Put stores b and returns its new ID. Size and UploadedAt are filled in
	// by the store.
	Put(ctx context.Context, b Blob) (string, error)

	// Get returns the blob with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*Blob, error)

	// Delete removes the blob with the given ID or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// checkSize rejects blobs over max. A non-positive max disables the check.
func checkSize(size, max int64) error {
	if max > 0 && size > max {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, size, max)
	}
	return nil
}

// prepare validates b and returns a private copy with derived metadata set.
func prepare(b Blob, max int64, now time.Time) (Blob, error) {
	if err := checkSize(int64(len(b.Data)), max); err != nil {
		return Blob{}, err
	}
	out := Blob{Data: bytes.Clone(b.Data), Meta: b.Meta}
	if out.Data == nil {
		out.Data = []byte{}
	}
	out.Meta.Size = int64(len(b.Data))
	out.Meta.UploadedAt = now.UTC().Truncate(time.Microsecond)
	if out.Meta.ContentType == "" {
		out.Meta.ContentType = defaultContentType
	}
	return out, nil
}

func newID() string {
	return uuid.NewString()
}

// validID reports whether id is a well-formed UUID. Malformed IDs are treated
// as not found so they never reach a backend query or object path.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
