package mocks

import (
	"context"
	"sync"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
)

// --- MockSource ---

// MockSource is a PayloadSource holding at most one share
type MockSource struct {
	mu      sync.Mutex
	kind    domain.SourceKind
	share   *domain.PendingShare
	err     error
	reads   int
	cleared int
	keep    bool
}

func NewMockSource(kind domain.SourceKind, share *domain.PendingShare) *MockSource {
	return &MockSource{kind: kind, share: share}
}

func (m *MockSource) Kind() domain.SourceKind { return m.kind }

func (m *MockSource) TryRead(ctx context.Context) (*domain.PendingShare, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.err != nil {
		return nil, m.err
	}
	if m.share == nil {
		return nil, nil
	}
	cp := *m.share
	return &cp, nil
}

func (m *MockSource) Clear(ctx context.Context, share *domain.PendingShare) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared++
	if m.keep {
		return nil
	}
	if m.share != nil && share != nil && m.share.ID == share.ID {
		m.share = nil
	}
	return nil
}

// KeepOnClear makes Clear leave the share in place, the way the clipboard
// keeps its content
func (m *MockSource) KeepOnClear() *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keep = true
	return m
}

func (m *MockSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Reads returns how many times TryRead was called
func (m *MockSource) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Pending reports whether the share is still held
func (m *MockSource) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.share != nil
}

// --- MockSideChannel ---

type MockSideChannel struct {
	mu      sync.Mutex
	values  map[string]string
	cleared int
}

func NewMockSideChannel(values map[string]string) *MockSideChannel {
	v := make(map[string]string, len(values))
	for k, val := range values {
		v[k] = val
	}
	return &MockSideChannel{values: v}
}

func (m *MockSideChannel) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MockSideChannel) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared++
	m.values = make(map[string]string)
	return nil
}

func (m *MockSideChannel) Cleared() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

// --- MockFetcher ---

type MockFetcher struct {
	mu          sync.Mutex
	body        []byte
	contentType string
	err         error
	calls       []string
}

func NewMockFetcher(body []byte, contentType string) *MockFetcher {
	return &MockFetcher{body: body, contentType: contentType}
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, url)
	if m.err != nil {
		return nil, "", m.err
	}
	return append([]byte(nil), m.body...), m.contentType, nil
}

func (m *MockFetcher) SetShouldFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockFetcher) GetCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}
