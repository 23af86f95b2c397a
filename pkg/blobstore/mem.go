package blobstore

import (
	"context"
	"sort"
	"sync"
)

// MemBlobstore is an in-memory Blobstore used in tests and by tooling that
// needs a scratch store. It is safe for concurrent use.
type MemBlobstore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	puts  uint64
}

func NewMemBlobstore() *MemBlobstore {
	return &MemBlobstore{blobs: make(map[string][]byte)}
}

func (m *MemBlobstore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.blobs[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (m *MemBlobstore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = stored
	m.puts++
	return nil
}

func (m *MemBlobstore) IsPresent(ctx context.Context, key string) (Presence, error) {
	if err := ctx.Err(); err != nil {
		return Absent, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.blobs[key]; ok {
		return Present, nil
	}
	return Absent, nil
}

func (m *MemBlobstore) Copy(ctx context.Context, oldKey, newKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.blobs[oldKey]
	if !ok {
		return &NotFoundError{Key: oldKey}
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.blobs[newKey] = stored
	return nil
}

// KeyCount returns the number of stored keys. Used by dedup tests.
func (m *MemBlobstore) KeyCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// PutCount returns the number of Put calls accepted.
func (m *MemBlobstore) PutCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// Keys returns all stored keys, sorted.
func (m *MemBlobstore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.blobs))
	for key := range m.blobs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
