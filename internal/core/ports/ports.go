package ports

import (
	"context"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
)

// PayloadSource defines the port for one place a pending share may be waiting
type PayloadSource interface {
	// Kind identifies the source
	Kind() domain.SourceKind

	// TryRead returns the pending share, or nil when there is none.
	// Absence is not an error.
	TryRead(ctx context.Context) (*domain.PendingShare, error)

	// Clear removes the share from the source after a successful save or an explicit clear
	Clear(ctx context.Context, share *domain.PendingShare) error
}

// SideChannelStore defines the port for the share handler's key/value image store.
// The pipeline only reads and, after success or an explicit clear, clears it.
type SideChannelStore interface {
	// Get returns the value for key and whether it was present
	Get(ctx context.Context, key string) (string, bool, error)

	// Clear removes all well-known keys
	Clear(ctx context.Context) error
}

// ImageFetcher defines the port for downloading a remote image
type ImageFetcher interface {
	// Fetch returns the body and the reported content type
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// SessionProvider defines the port for the signed-in identity
type SessionProvider interface {
	// CurrentUser returns the user, or nil when nobody is signed in
	CurrentUser(ctx context.Context) (*domain.User, error)
}

// CategoryStore defines the port for category persistence
type CategoryStore interface {
	// ListCategories returns the user's categories ordered by name
	ListCategories(ctx context.Context, userID string) ([]domain.Category, error)

	// CreateCategory creates a category and returns its ID
	CreateCategory(ctx context.Context, userID string, category domain.Category) (string, error)
}

// PreferenceStore defines the port for per-user preferences
type PreferenceStore interface {
	// DefaultCategory returns the configured default category ID, or "" when unset
	DefaultCategory(ctx context.Context, userID string) (string, error)

	// SetDefaultCategory stores the default category ID; "" unsets it
	SetDefaultCategory(ctx context.Context, userID, categoryID string) error
}

// ContentStore defines the port for container and image persistence.
// Errors are *domain.Error with kinds DuplicateContent, PlanLimitExceeded,
// UnsupportedPlatform or Other.
type ContentStore interface {
	// CreateContainer creates a container in a category and returns its ID
	CreateContainer(ctx context.Context, userID, categoryID string, meta domain.ContainerMeta) (string, error)

	// UploadImages attaches images to a container
	UploadImages(ctx context.Context, containerID string, images []*domain.NormalizedImage, note string) ([]domain.StoredImage, error)

	// ListContainers returns the user's containers, newest first
	ListContainers(ctx context.Context, userID string) ([]domain.Container, error)

	// DeleteContainer removes a container with its images
	DeleteContainer(ctx context.Context, containerID string) error
}

// QuotaSource defines the port for usage versus plan limits
type QuotaSource interface {
	// QuotaSnapshot returns a fresh snapshot
	QuotaSnapshot(ctx context.Context, userID string) (domain.QuotaSnapshot, error)
}

// AttemptRecord is the stored state of the auto-save attempt for a share
type AttemptRecord struct {
	ShareID   string
	AttemptID string
	State     domain.PipelineState
	Reason    domain.Reason
}

// AttemptTracker defines the port for idempotent ingestion, keyed on share identity
type AttemptTracker interface {
	// Lookup returns the attempt recorded for a share, or nil
	Lookup(ctx context.Context, shareID string) (*AttemptRecord, error)

	// Claim atomically records that attemptID moved the share to AutoSaving.
	// It returns false when the share was already claimed by any attempt.
	Claim(ctx context.Context, shareID, attemptID string) (bool, error)

	// Finish records the terminal state of a claimed attempt
	Finish(ctx context.Context, shareID, attemptID string, state domain.PipelineState, reason domain.Reason) error

	// Forget removes the record, used when a share is explicitly cleared
	Forget(ctx context.Context, shareID string) error
}

// BlobStore defines the port for raw image bytes
type BlobStore interface {
	// Put stores data and returns the key and the URLs it is reachable at
	Put(ctx context.Context, img *domain.NormalizedImage) (*domain.Asset, []string, error)

	// Delete removes a stored blob
	Delete(ctx context.Context, key string) error
}
