package crawler

import (
	"context"
	"sync"
	"time"

	"sjsage522/specialsworker/services/cache"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	cache map[string][]byte
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	delete(m.cache, key)
	return nil
}

// MockReporter collects reported deals
type MockReporter struct {
	mu    sync.Mutex
	deals []Deal
	err   error
}

func (m *MockReporter) Report(ctx context.Context, session *Session, deal Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals = append(m.deals, deal)
	return m.err
}

func (m *MockReporter) Deals() []Deal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Deal(nil), m.deals...)
}

// MockPublisher records published messages
type MockPublisher struct {
	mu       sync.Mutex
	keys     []string
	messages [][]byte
	err      error
	trimmed  int
}

func (m *MockPublisher) Publish(key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.keys = append(m.keys, key)
	m.messages = append(m.messages, message)
	return nil
}

func (m *MockPublisher) TrimStreams() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmed++
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}
