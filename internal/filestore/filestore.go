// Package filestore is the uploaded-document storage collaborator. The
// service layer only sees this interface; production uses the MinIO
// implementation, dev mode and tests use the in-memory one.
package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var ErrObjectNotFound = errors.New("stored object not found")

type FileStore interface {
	Store(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	// PresignURL returns a temporary GET URL for the object.
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Memory keeps objects in a map. Reads and writes copy the payload so the
// store never aliases caller buffers.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Store(_ context.Context, key string, reader io.Reader, size int64, _ string) error {
	if key == "" {
		return errors.New("empty object key")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read object payload: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("object %s: declared %d bytes, read %d", key, size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = bytes.Clone(data)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.objects[key]; !exists {
		return ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *Memory) PresignURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.objects[key]; !exists {
		return "", ErrObjectNotFound
	}
	return fmt.Sprintf("memory://%s?ttl=%d", key, int(ttl.Seconds())), nil
}

// Get is a test helper; production code goes through PresignURL.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.objects[key]
	if !exists {
		return nil, false
	}
	return bytes.Clone(data), true
}

// Len reports how many objects are stored; used by tests to assert cleanup.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
