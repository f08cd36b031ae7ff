package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/adocshq/adocs/internal/domain"
	"github.com/adocshq/adocs/internal/domain/docs"
	"github.com/adocshq/adocs/internal/port/cache"
	"github.com/adocshq/adocs/internal/port/contentstore"
	"github.com/adocshq/adocs/internal/port/database"
	"github.com/adocshq/adocs/internal/port/llm"
)

// Ensure mock types implement their interfaces at compile time.
var (
	_ llm.Completer     = (*mockCompleter)(nil)
	_ llm.Embedder      = (*mockEmbedder)(nil)
	_ contentstore.Store = (*mockContentStore)(nil)
	_ cache.Cache       = (*mockCache)(nil)
	_ database.Store    = (*mockDatabase)(nil)
)

// mockCompleter replays scripted responses per model. A model not in the
// script fails.
type mockCompleter struct {
	responses map[string]string
	errs      map[string]error
	calls     []llm.CompletionRequest
}

func (m *mockCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	m.calls = append(m.calls, req)
	if err, ok := m.errs[req.Model]; ok {
		return "", err
	}
	if resp, ok := m.responses[req.Model]; ok {
		return resp, nil
	}
	return "", fmt.Errorf("model %s unavailable", req.Model)
}

type mockEmbedder struct {
	vector []float32
	err    error
}

func (m *mockEmbedder) Embed(_ context.Context, _, _ string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

type mockContentStore struct {
	mu   sync.Mutex
	data map[string][]byte
	gets []string
}

func newMockContentStore() *mockContentStore {
	return &mockContentStore{data: make(map[string][]byte)}
}

func (m *mockContentStore) Get(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets = append(m.gets, path)
	data, ok := m.data[path]
	if !ok {
		return nil, fmt.Errorf("content %s: %w", path, domain.ErrNotFound)
	}
	return data, nil
}

func (m *mockContentStore) Put(_ context.Context, path string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[path] = content
	return nil
}

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
	hits int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if ok {
		m.hits++
	}
	return data, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type mockDatabase struct {
	mu        sync.Mutex
	generated map[string]docs.Structure
	models    map[string]string
	accepted  map[string]docs.Structure
	saveErr   error
}

func newMockDatabase() *mockDatabase {
	return &mockDatabase{
		generated: make(map[string]docs.Structure),
		models:    make(map[string]string),
		accepted:  make(map[string]docs.Structure),
	}
}

func (m *mockDatabase) SaveStructure(_ context.Context, repoID string, s docs.Structure, model string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated[repoID] = s
	m.models[repoID] = model
	return nil
}

func (m *mockDatabase) GetStructure(_ context.Context, repoID string) (*docs.Structure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.generated[repoID]
	if !ok {
		return nil, fmt.Errorf("get structure %s: %w", repoID, domain.ErrNotFound)
	}
	return &s, nil
}

func (m *mockDatabase) UpsertAcceptedStructure(_ context.Context, repoID string, s docs.Structure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted[repoID] = s
	return nil
}

func (m *mockDatabase) ListAcceptedStructures(_ context.Context) (map[string]docs.Structure, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]docs.Structure, len(m.accepted))
	for k, v := range m.accepted {
		out[k] = v
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
