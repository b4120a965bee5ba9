// Package storagetest provides an in-memory storage.Store for tests.
package storagetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"Fixer-backend/internal/storage"
)

type object struct {
	data        []byte
	contentType string
}

// Memory is a storage.Store kept in a map. PutErr, when set, fails every Put.
type Memory struct {
	mu      sync.Mutex
	objects map[string]object
	PutErr  error
	PingErr error
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]object)}
}

func (m *Memory) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = object{data: buf, contentType: contentType}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (io.ReadCloser, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, 0, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), int64(len(obj.data)), nil
}

func (m *Memory) URL(_ context.Context, key string, expiry time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return "", storage.ErrNotFound
	}
	return fmt.Sprintf("memory://%s?expires=%d", key, int(expiry.Seconds())), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) Ping(context.Context) error {
	return m.PingErr
}

// Object returns the stored bytes and content type of key.
func (m *Memory) Object(key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", errors.New("no such object")
	}
	return obj.data, obj.contentType, nil
}

// Keys lists every stored key.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
