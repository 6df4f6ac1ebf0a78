package storage

import (
	"bytes"
	"context"
	"sync"
	"time"
)

// MemoryStore keeps blobs in process memory. Contents are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	blobs   map[string]Blob
	maxSize int64
	now     func() time.Time
}

// NewMemoryStore returns an empty store that rejects blobs over maxSize bytes.
func NewMemoryStore(maxSize int64) *MemoryStore {
	return &MemoryStore{
		blobs:   make(map[string]Blob),
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(ctx context.Context, b Blob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	blob, err := prepare(b, s.maxSize, s.now())
	if err != nil {
		return "", err
	}

	id := newID()
	s.mu.Lock()
	s.blobs[id] = blob
	s.mu.Unlock()
	return id, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	blob, ok := s.blobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &Blob{Data: bytes.Clone(blob.Data), Meta: blob.Meta}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.blobs, id)
	return nil
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
