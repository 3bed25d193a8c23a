package blob

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
	"github.com/kamal-hamza/tagbox/pkg/vault"
)

// LocalStore keeps blobs under the vault's assets directory
type LocalStore struct {
	vault *vault.Vault
}

// NewLocalStore creates a blob store rooted at v.AssetsPath
func NewLocalStore(v *vault.Vault) *LocalStore {
	return &LocalStore{vault: v}
}

var _ ports.BlobStore = (*LocalStore)(nil)

// Put writes the image unless an identical blob is already stored
func (s *LocalStore) Put(ctx context.Context, img *domain.NormalizedImage) (*domain.Asset, []string, error) {
	if img == nil || len(img.Bytes) == 0 {
		return nil, nil, fmt.Errorf("no image bytes to store")
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	key, hash := contentKey(img)
	destPath := s.vault.GetAssetPath(key)

	// Same key means same content hash; only the size is re-checked
	if info, err := os.Stat(destPath); err == nil && !info.IsDir() && info.Size() == int64(len(img.Bytes)) {
		return newAsset(img, key, hash), []string{fileURL(destPath)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create asset directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".upload-*")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(img.Bytes); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, nil, fmt.Errorf("failed to write asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, nil, fmt.Errorf("failed to write asset: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return nil, nil, fmt.Errorf("failed to move asset into place: %w", err)
	}

	return newAsset(img, key, hash), []string{fileURL(destPath)}, nil
}

// Delete removes a stored blob. Missing blobs are not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.vault.GetAssetPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset %s: %w", key, err)
	}
	return nil
}

func fileURL(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
