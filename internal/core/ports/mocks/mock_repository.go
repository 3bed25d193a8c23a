package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
)

// --- MockSession ---

// MockSession is a mock implementation of the SessionProvider interface for testing
type MockSession struct {
	mu   sync.RWMutex
	user *domain.User
}

// NewMockSession creates a session signed in as user (nil for signed out)
func NewMockSession(user *domain.User) *MockSession {
	return &MockSession{user: user}
}

func (m *MockSession) CurrentUser(ctx context.Context) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user, nil
}

func (m *MockSession) SetUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = user
}

// --- MockCategoryStore ---

type MockCategoryStore struct {
	mu         sync.RWMutex
	categories map[string][]domain.Category
	nextID     int
	failError  error
}

func NewMockCategoryStore() *MockCategoryStore {
	return &MockCategoryStore{
		categories: make(map[string][]domain.Category),
	}
}

// ListCategories returns the user's categories ordered by name
func (m *MockCategoryStore) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failError != nil {
		return nil, m.failError
	}

	out := make([]domain.Category, len(m.categories[userID]))
	copy(out, m.categories[userID])
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateCategory stores a category, assigning an ID when missing
func (m *MockCategoryStore) CreateCategory(ctx context.Context, userID string, category domain.Category) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := domain.ValidateCategoryName(category.Name); err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "invalid category", err)
	}
	for _, c := range m.categories[userID] {
		if strings.EqualFold(c.Name, category.Name) {
			return "", domain.NewError(domain.ErrInvalidInput, fmt.Sprintf("category %q already exists", category.Name))
		}
	}

	if category.ID == "" {
		m.nextID++
		category.ID = fmt.Sprintf("cat-%d", m.nextID)
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now()
	}
	m.categories[userID] = append(m.categories[userID], category)
	return category.ID, nil
}

func (m *MockCategoryStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failError = err
}

// --- MockPreferenceStore ---

type MockPreferenceStore struct {
	mu       sync.RWMutex
	defaults map[string]string
}

func NewMockPreferenceStore() *MockPreferenceStore {
	return &MockPreferenceStore{defaults: make(map[string]string)}
}

func (m *MockPreferenceStore) DefaultCategory(ctx context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaults[userID], nil
}

func (m *MockPreferenceStore) SetDefaultCategory(ctx context.Context, userID, categoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if categoryID == "" {
		delete(m.defaults, userID)
		return nil
	}
	m.defaults[userID] = categoryID
	return nil
}

// --- MockContentStore ---

// MockContentStore records every call so tests can assert on persistence counts
type MockContentStore struct {
	mu          sync.Mutex
	containers  map[string]domain.Container
	images      map[string][]domain.StoredImage
	createCalls int
	uploadCalls int
	createErr   error
	uploadErr   error
	nextID      int
}

func NewMockContentStore() *MockContentStore {
	return &MockContentStore{
		containers: make(map[string]domain.Container),
		images:     make(map[string][]domain.StoredImage),
	}
}

func (m *MockContentStore) CreateContainer(ctx context.Context, userID, categoryID string, meta domain.ContainerMeta) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++
	if m.createErr != nil {
		return "", m.createErr
	}

	if meta.URL != "" {
		for _, c := range m.containers {
			if c.UserID == userID && c.URL == meta.URL {
				return "", domain.NewError(domain.ErrDuplicateContent, "content already saved")
			}
		}
	}

	m.nextID++
	id := fmt.Sprintf("ctr-%d", m.nextID)
	m.containers[id] = domain.Container{
		ID:         id,
		UserID:     userID,
		CategoryID: categoryID,
		Title:      meta.Title,
		URL:        meta.URL,
		Platform:   meta.Platform,
		Note:       meta.Note,
		Tags:       meta.Tags,
		CreatedAt:  time.Now(),
	}
	return id, nil
}

func (m *MockContentStore) UploadImages(ctx context.Context, containerID string, images []*domain.NormalizedImage, note string) ([]domain.StoredImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.uploadCalls++
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	if _, ok := m.containers[containerID]; !ok {
		return nil, domain.NewError(domain.ErrNotFound, "container not found: "+containerID)
	}

	stored := make([]domain.StoredImage, 0, len(images))
	for i, img := range images {
		s := domain.StoredImage{
			ID:          fmt.Sprintf("%s-img-%d", containerID, i),
			ContainerID: containerID,
			URLs:        []string{"mock://" + img.FileName},
			SizeBytes:   img.SizeBytes,
		}
		stored = append(stored, s)
	}
	m.images[containerID] = append(m.images[containerID], stored...)
	return stored, nil
}

func (m *MockContentStore) ListContainers(ctx context.Context, userID string) ([]domain.Container, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Container, 0, len(m.containers))
	for _, c := range m.containers {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *MockContentStore) DeleteContainer(ctx context.Context, containerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.containers, containerID)
	delete(m.images, containerID)
	return nil
}

func (m *MockContentStore) SetCreateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

func (m *MockContentStore) SetUploadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErr = err
}

// Calls returns how many times CreateContainer and UploadImages were invoked
func (m *MockContentStore) Calls() (create, upload int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls, m.uploadCalls
}

// Images returns the images stored for a container
func (m *MockContentStore) Images(containerID string) []domain.StoredImage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.StoredImage(nil), m.images[containerID]...)
}

// --- MockQuotaSource ---

type MockQuotaSource struct {
	mu       sync.RWMutex
	snapshot domain.QuotaSnapshot
	calls    int
}

func NewMockQuotaSource(snapshot domain.QuotaSnapshot) *MockQuotaSource {
	return &MockQuotaSource{snapshot: snapshot}
}

// NewUnlimitedQuotaSource creates a quota source without ceilings
func NewUnlimitedQuotaSource() *MockQuotaSource {
	return NewMockQuotaSource(domain.QuotaSnapshot{MaxCount: domain.Unlimited, MaxBytes: domain.Unlimited})
}

func (m *MockQuotaSource) QuotaSnapshot(ctx context.Context, userID string) (domain.QuotaSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.snapshot, nil
}

func (m *MockQuotaSource) Set(snapshot domain.QuotaSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snapshot
}

// --- MockAttemptTracker ---

type MockAttemptTracker struct {
	mu      sync.Mutex
	records map[string]*ports.AttemptRecord
}

func NewMockAttemptTracker() *MockAttemptTracker {
	return &MockAttemptTracker{records: make(map[string]*ports.AttemptRecord)}
}

func (m *MockAttemptTracker) Lookup(ctx context.Context, shareID string) (*ports.AttemptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[shareID]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *MockAttemptTracker) Claim(ctx context.Context, shareID, attemptID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[shareID]; ok {
		return false, nil
	}
	m.records[shareID] = &ports.AttemptRecord{
		ShareID:   shareID,
		AttemptID: attemptID,
		State:     domain.StateAutoSaving,
	}
	return true, nil
}

func (m *MockAttemptTracker) Finish(ctx context.Context, shareID, attemptID string, state domain.PipelineState, reason domain.Reason) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[shareID]
	if !ok || r.AttemptID != attemptID {
		return domain.NewError(domain.ErrNotFound, "no claimed attempt for share "+shareID)
	}
	r.State = state
	r.Reason = reason
	return nil
}

func (m *MockAttemptTracker) Forget(ctx context.Context, shareID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, shareID)
	return nil
}

// --- MockBlobStore ---

type MockBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{blobs: make(map[string][]byte)}
}

func (m *MockBlobStore) Put(ctx context.Context, img *domain.NormalizedImage) (*domain.Asset, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fmt.Sprintf("blob-%d-%s", len(m.blobs)+1, img.FileName)
	m.blobs[key] = append([]byte(nil), img.Bytes...)
	return &domain.Asset{
		Key:          key,
		OriginalName: img.FileName,
		MIMEType:     img.MIMEType,
		SizeBytes:    img.SizeBytes,
		UploadedAt:   time.Now(),
	}, []string{"mock://" + key}, nil
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *MockBlobStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}
