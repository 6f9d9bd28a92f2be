package storage

import (
	"context"
	"fmt"
	"sync"

	verifactu "github.com/factuhub/backend/internal/domain/verifactu"
)

// Ensure MemoryBlobStorage implements verifactu.BlobStore
var _ verifactu.BlobStore = (*MemoryBlobStorage)(nil)

// MemoryBlobStorage is an in-process BlobStore for development and tests.
// Contents do not survive a restart.
type MemoryBlobStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBlobStorage creates a new MemoryBlobStorage
func NewMemoryBlobStorage() *MemoryBlobStorage {
	return &MemoryBlobStorage{blobs: make(map[string][]byte)}
}

// Put stores a copy of the data under the given key.
func (m *MemoryBlobStorage) Put(_ context.Context, key string, data []byte, _ string) error {
	if key == "" {
		return fmt.Errorf("storage key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.blobs[key] = buf
	return nil
}

// Get returns the data stored under the given key.
func (m *MemoryBlobStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Len returns the number of stored objects
func (m *MemoryBlobStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
