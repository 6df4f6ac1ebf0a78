package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const blobSchema = `
CREATE TABLE IF NOT EXISTS blobs (
	id            UUID PRIMARY KEY,
	original_name TEXT NOT NULL,
	content_type  TEXT NOT NULL,
	size          BIGINT NOT NULL,
	data          BYTEA NOT NULL,
	uploaded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps blobs in the blobs table.
type PostgresStore struct {
	db      DB
	maxSize int64
	now     func() time.Time
}

// NewPostgresStore wraps db, typically a *pgxpool.Pool.
func NewPostgresStore(db DB, maxSize int64) *PostgresStore {
	return &PostgresStore{db: db, maxSize: maxSize, now: time.Now}
}

// EnsureSchema creates the blobs table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, blobSchema); err != nil {
		return fmt.Errorf("create blobs table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, b Blob) (string, error) {
	blob, err := prepare(b, s.maxSize, s.now())
	if err != nil {
		return "", err
	}

	id := newID()
	_, err = s.db.Exec(ctx,
		`INSERT INTO blobs (id, original_name, content_type, size, data, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, blob.Meta.OriginalName, blob.Meta.ContentType, blob.Meta.Size, blob.Data, blob.Meta.UploadedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert blob: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Blob, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	var b Blob
	err := s.db.QueryRow(ctx,
		`SELECT original_name, content_type, size, data, uploaded_at FROM blobs WHERE id = $1`,
		id,
	).Scan(&b.Meta.OriginalName, &b.Meta.ContentType, &b.Meta.Size, &b.Data, &b.Meta.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select blob: %w", err)
	}
	b.Meta.UploadedAt = b.Meta.UploadedAt.UTC()
	return &b, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM blobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Sweep deletes blobs uploaded before the cutoff.
func (s *PostgresStore) Sweep(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM blobs WHERE uploaded_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("sweep blobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
