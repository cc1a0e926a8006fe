package storage

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/polaris/gateway/internal/domain/gateway"
)

// Memory is an in-process ObjectStore used when no upload directory is writable
// (e.g. ephemeral test environments), grounded on the teacher's MemoryStorage.
type Memory struct {
	mu   sync.RWMutex
	blobs map[string][]byte
}

// NewMemory constructs an empty in-memory object store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) Save(ctx context.Context, storedName string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[storedName] = data
	return nil
}

func (m *Memory) Open(ctx context.Context, storedName string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[storedName]
	if !ok {
		return nil, gateway.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Locate(storedName string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[storedName]
	return "", ok
}

var _ gateway.ObjectStore = (*Memory)(nil)
