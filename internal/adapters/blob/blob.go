// Package blob stores image bytes either in the local vault or in an S3-compatible bucket.
package blob

import (
	"context"
	"fmt"

	"github.com/kamal-hamza/tagbox/internal/core/ports"
	"github.com/kamal-hamza/tagbox/pkg/config"
	"github.com/kamal-hamza/tagbox/pkg/vault"
)

// New returns the store selected by cfg.Storage.Backend
func New(ctx context.Context, cfg *config.Config, v *vault.Vault) (ports.BlobStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendS3:
		return NewS3Store(ctx, cfg.Storage)
	case config.BackendLocal, "":
		return NewLocalStore(v), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
