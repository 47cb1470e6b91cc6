package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/openlis/lis-api/pkg/apierror"
)

// MemoryStore keeps objects in process memory for development and tests. Its
// URLs are not fetchable over HTTP.
type MemoryStore struct {
	bucket string

	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: map[string][]byte{}}
}

func (m *MemoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = b
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, apierror.NotFound("object " + key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *MemoryStore) PresignedURL(_ context.Context, key string, expires time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", apierror.NotFound("object " + key)
	}
	return fmt.Sprintf("memory://%s/%s?expires=%d", m.bucket, key, int(expires.Seconds())), nil
}
