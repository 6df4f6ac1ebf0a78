package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

const (
	metaOriginalName = "original-name"
	metaUploadedAt   = "uploaded-at"
)

// GCSStore keeps each blob as one object under prefix in a Cloud Storage
// bucket. The original file name and upload time travel as object metadata.
type GCSStore struct {
	bucket  *storage.BucketHandle
	prefix  string
	maxSize int64
	now     func() time.Time
}

// NewGCSStore stores objects in bucket under prefix.
func NewGCSStore(bucket *storage.BucketHandle, prefix string, maxSize int64) *GCSStore {
	return &GCSStore{bucket: bucket, prefix: prefix, maxSize: maxSize, now: time.Now}
}

func (s *GCSStore) objectName(id string) string {
	return s.prefix + id
}

// Put writes the object only if it does not already exist.
func (s *GCSStore) Put(ctx context.Context, b Blob) (string, error) {
	blob, err := prepare(b, s.maxSize, s.now())
	if err != nil {
		return "", err
	}

	id := newID()
	w := s.bucket.Object(s.objectName(id)).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = blob.Meta.ContentType
	w.Metadata = map[string]string{
		metaOriginalName: blob.Meta.OriginalName,
		metaUploadedAt:   blob.Meta.UploadedAt.Format(time.RFC3339Nano),
	}

	if _, err := w.Write(blob.Data); err != nil {
		_ = w.Close()
		return "", writeError(id, err)
	}
	if err := w.Close(); err != nil {
		return "", writeError(id, err)
	}
	return id, nil
}

func writeError(id string, err error) error {
	if isPreconditionFailed(err) {
		return fmt.Errorf("blob %s already exists: %w", id, err)
	}
	return fmt.Errorf("write blob object: %w", err)
}

func (s *GCSStore) Get(ctx context.Context, id string) (*Blob, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	obj := s.bucket.Object(s.objectName(id))

	attrs, err := obj.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob attributes: %w", err)
	}
	if err := checkSize(attrs.Size, s.maxSize); err != nil {
		return nil, err
	}

	r, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open blob object: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read blob object: %w", err)
	}

	return &Blob{Data: data, Meta: metaFromAttrs(attrs, int64(len(data)))}, nil
}

func metaFromAttrs(attrs *storage.ObjectAttrs, size int64) Meta {
	meta := Meta{
		OriginalName: attrs.Metadata[metaOriginalName],
		ContentType:  attrs.ContentType,
		Size:         size,
		UploadedAt:   attrs.Created.UTC(),
	}
	if ts, err := time.Parse(time.RFC3339Nano, attrs.Metadata[metaUploadedAt]); err == nil {
		meta.UploadedAt = ts.UTC()
	}
	if meta.ContentType == "" {
		meta.ContentType = defaultContentType
	}
	return meta
}

func (s *GCSStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	err := s.bucket.Object(s.objectName(id)).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete blob object: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// Sweep deletes objects under the prefix created before the cutoff. Objects
// removed concurrently are skipped.
func (s *GCSStore) Sweep(ctx context.Context, before time.Time) (int, error) {
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: s.prefix})

	removed := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return removed, nil
		}
		if err != nil {
			return removed, fmt.Errorf("list blob objects: %w", err)
		}
		if !attrs.Created.Before(before) {
			continue
		}

		err = s.bucket.Object(attrs.Name).Delete(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("delete expired object %s: %w", attrs.Name, err)
		}
		removed++
	}
}
