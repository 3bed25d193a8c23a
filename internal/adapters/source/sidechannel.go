package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
)

// FileSideChannel is the share handler's key/value store, one file per key
// under the vault's share directory.
type FileSideChannel struct {
	dir string
	mu  sync.RWMutex
}

func NewFileSideChannel(dir string) *FileSideChannel {
	return &FileSideChannel{dir: dir}
}

func (s *FileSideChannel) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}

// Get returns the value stored under key
func (s *FileSideChannel) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read side-channel key %s: %w", key, err)
	}
	return string(data), true, nil
}

// Put stores a value. Only the share handler writes.
func (s *FileSideChannel) Put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create side-channel directory: %w", err)
	}
	if err := os.WriteFile(s.path(key), []byte(value), 0600); err != nil {
		return fmt.Errorf("failed to write side-channel key %s: %w", key, err)
	}
	return nil
}

// Clear removes every well-known key
func (s *FileSideChannel) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range domain.SideChannelKeys {
		if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear side-channel key %s: %w", key, err)
		}
	}
	return nil
}
