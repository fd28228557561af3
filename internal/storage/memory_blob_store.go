package storage

import (
	"context"
	"sync"
)

type blob struct {
	data        []byte
	contentType string
}

// MemoryBlobStore is the in-process BlobStore used with the memory store driver.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string]blob)}
}

func (s *MemoryBlobStore) Put(_ context.Context, imageID string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[imageID] = blob{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (s *MemoryBlobStore) Get(_ context.Context, imageID string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[imageID]
	if !ok {
		return nil, "", ErrBlobNotFound
	}
	return append([]byte(nil), b.data...), b.contentType, nil
}

func (s *MemoryBlobStore) Delete(_ context.Context, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, imageID)
	return nil
}

func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
