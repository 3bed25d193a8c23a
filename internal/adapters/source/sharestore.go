package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/pkg/vault"
)

// ShareIntentStore is the pending-share slot written by the share handler
// ('tagbox share', the inbox watcher) and read by the pipeline. It holds at
// most one share, persisted as a JSON manifest.
type ShareIntentStore struct {
	manifestPath string
	mu           sync.RWMutex
}

func NewShareIntentStore(v *vault.Vault) *ShareIntentStore {
	return &ShareIntentStore{manifestPath: v.PendingSharePath()}
}

func (s *ShareIntentStore) Kind() domain.SourceKind {
	return domain.SourceShareIntent
}

// TryRead returns the pending share, or nil when the slot is empty
func (s *ShareIntentStore) TryRead(ctx context.Context) (*domain.PendingShare, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.manifestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pending share: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var share domain.PendingShare
	if err := json.Unmarshal(data, &share); err != nil {
		return nil, fmt.Errorf("failed to parse pending share: %w", err)
	}
	share.SourceKind = domain.SourceShareIntent
	return &share, nil
}

// Stage writes a new pending share, replacing any previous one. The newest
// share wins, matching how the OS hands a single intent to the app.
func (s *ShareIntentStore) Stage(ctx context.Context, kind domain.RawKind, raw, categoryHint string) (*domain.PendingShare, error) {
	share := &domain.PendingShare{
		ID:           ulid.Make().String(),
		SourceKind:   domain.SourceShareIntent,
		RawKind:      kind,
		RawValue:     raw,
		CapturedAt:   time.Now().UTC(),
		CategoryHint: categoryHint,
	}

	data, err := json.MarshalIndent(share, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode pending share: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.manifestPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	tmp := s.manifestPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write pending share: %w", err)
	}
	if err := os.Rename(tmp, s.manifestPath); err != nil {
		return nil, fmt.Errorf("failed to commit pending share: %w", err)
	}
	return share, nil
}

// Clear deletes the manifest if it still holds the given share. A newer
// share staged in the meantime is left alone.
func (s *ShareIntentStore) Clear(ctx context.Context, share *domain.PendingShare) error {
	current, err := s.TryRead(ctx)
	if err != nil || current == nil {
		return err
	}
	if share != nil && current.ID != share.ID {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.manifestPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pending share: %w", err)
	}
	return nil
}
