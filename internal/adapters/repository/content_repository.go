package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
)

// ContentRepository stores containers and image rows in sqlite and image bytes in a BlobStore.
// Plan limits are enforced here as well as in the pipeline, since only the store sees concurrent writers.
type ContentRepository struct {
	db    *sql.DB
	blobs ports.BlobStore
	quota ports.QuotaSource
}

// NewContentRepository creates a new sqlite-backed content repository
func NewContentRepository(db *sql.DB, blobs ports.BlobStore, quota ports.QuotaSource) *ContentRepository {
	return &ContentRepository{
		db:    db,
		blobs: blobs,
		quota: quota,
	}
}

// Ensure it implements the interface
var _ ports.ContentStore = (*ContentRepository)(nil)

// CreateContainer creates a container in a category and returns its ID
func (r *ContentRepository) CreateContainer(ctx context.Context, userID, categoryID string, meta domain.ContainerMeta) (string, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM categories WHERE id = ? AND user_id = ?`, categoryID, userID).Scan(&exists)
	if err == sql.ErrNoRows {
		return "", domain.NewError(domain.ErrNotFound, "category not found: "+categoryID)
	}
	if err != nil {
		return "", domain.WrapError(domain.ErrOther, "failed to look up category", err)
	}

	if meta.URL != "" && !meta.Platform.AutoProcessable() {
		return "", domain.NewError(domain.ErrUnsupportedPlatform, domain.UnsupportedPlatformMessage())
	}

	var tagsJSON sql.NullString
	if len(meta.Tags) > 0 {
		data, err := json.Marshal(meta.Tags)
		if err != nil {
			return "", domain.WrapError(domain.ErrOther, "failed to encode tags", err)
		}
		tagsJSON = sql.NullString{String: string(data), Valid: true}
	}

	id := uuid.NewString()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO containers (id, user_id, category_id, title, url, platform, note, tags_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, userID, categoryID, strings.TrimSpace(meta.Title), meta.URL, meta.Platform.String(),
		strings.TrimSpace(meta.Note), tagsJSON, time.Now().Unix())
	if err != nil {
		if isUniqueConstraintError(err) {
			return "", domain.NewError(domain.ErrDuplicateContent, "content already saved: "+meta.URL)
		}
		return "", domain.WrapError(domain.ErrOther, "failed to create container", err)
	}
	return id, nil
}

// UploadImages stores the blobs and attaches them to a container. A non-empty
// note replaces the container note. Blobs written before a failure are removed
// unless another image row still references them.
func (r *ContentRepository) UploadImages(ctx context.Context, containerID string, images []*domain.NormalizedImage, note string) ([]domain.StoredImage, error) {
	var userID string
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM containers WHERE id = ?`, containerID).Scan(&userID)
	if err == sql.ErrNoRows {
		return nil, domain.NewError(domain.ErrNotFound, "container not found: "+containerID)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrOther, "failed to look up container", err)
	}

	inc := domain.QuotaIncrement{Count: int64(len(images))}
	for _, img := range images {
		inc.Bytes += img.SizeBytes
	}
	snap, err := r.quota.QuotaSnapshot(ctx, userID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrOther, "failed to read quota", err)
	}
	if !snap.Allows(inc) {
		return nil, domain.NewError(domain.ErrPlanLimitExceeded, "plan limit reached ("+snap.String()+")")
	}

	type pending struct {
		asset *domain.Asset
		urls  []string
	}
	written := make([]pending, 0, len(images))
	rollback := func() {
		for _, p := range written {
			r.deleteOrphan(context.WithoutCancel(ctx), p.asset.Key)
		}
	}

	for _, img := range images {
		asset, urls, err := r.blobs.Put(ctx, img)
		if err != nil {
			rollback()
			return nil, domain.WrapError(domain.ErrOther, "failed to store image "+img.FileName, err)
		}
		written = append(written, pending{asset: asset, urls: urls})
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		rollback()
		return nil, domain.WrapError(domain.ErrOther, "failed to begin transaction", err)
	}

	stored := make([]domain.StoredImage, 0, len(written))
	now := time.Now().Unix()
	for _, p := range written {
		urlsJSON, err := json.Marshal(p.urls)
		if err != nil {
			tx.Rollback()
			rollback()
			return nil, domain.WrapError(domain.ErrOther, "failed to encode image urls", err)
		}
		id := uuid.NewString()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO images (id, container_id, blob_key, original_name, mime_type, size_bytes, hash, urls_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, containerID, p.asset.Key, p.asset.OriginalName, p.asset.MIMEType, p.asset.SizeBytes, p.asset.Hash, string(urlsJSON), now)
		if err != nil {
			tx.Rollback()
			rollback()
			return nil, domain.WrapError(domain.ErrOther, "failed to record image", err)
		}
		stored = append(stored, domain.StoredImage{
			ID:          id,
			ContainerID: containerID,
			URLs:        p.urls,
			SizeBytes:   p.asset.SizeBytes,
		})
	}

	if note = strings.TrimSpace(note); note != "" {
		if _, err := tx.ExecContext(ctx, `UPDATE containers SET note = ? WHERE id = ?`, note, containerID); err != nil {
			tx.Rollback()
			rollback()
			return nil, domain.WrapError(domain.ErrOther, "failed to update note", err)
		}
	}

	if err := tx.Commit(); err != nil {
		rollback()
		return nil, domain.WrapError(domain.ErrOther, "failed to commit images", err)
	}
	return stored, nil
}

// deleteOrphan removes a blob that no image row references
func (r *ContentRepository) deleteOrphan(ctx context.Context, key string) {
	var refs int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images WHERE blob_key = ?`, key).Scan(&refs); err != nil || refs > 0 {
		return
	}
	_ = r.blobs.Delete(ctx, key)
}

// DeleteContainer removes a container and its image rows, then any blob no
// other image still references. Deleting a missing container is not an error.
func (r *ContentRepository) DeleteContainer(ctx context.Context, containerID string) error {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT blob_key FROM images WHERE container_id = ?`, containerID)
	if err != nil {
		return fmt.Errorf("failed to list container images: %w", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan blob key: %w", err)
		}
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to list container images: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM containers WHERE id = ?`, containerID); err != nil {
		return fmt.Errorf("failed to delete container: %w", err)
	}
	for _, key := range keys {
		r.deleteOrphan(ctx, key)
	}
	return nil
}

// ListContainers returns the user's containers, newest first
func (r *ContentRepository) ListContainers(ctx context.Context, userID string) ([]domain.Container, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category_id, title, url, platform, note, tags_json, created_at
		FROM containers
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	defer rows.Close()

	var containers []domain.Container
	for rows.Next() {
		var (
			c        domain.Container
			platform string
			tagsJSON sql.NullString
			created  int64
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.CategoryID, &c.Title, &c.URL, &platform, &c.Note, &tagsJSON, &created); err != nil {
			return nil, fmt.Errorf("failed to scan container: %w", err)
		}
		c.Platform = domain.ParsePlatform(platform)
		c.CreatedAt = unixTime(created)
		if tagsJSON.Valid && tagsJSON.String != "" {
			if err := json.Unmarshal([]byte(tagsJSON.String), &c.Tags); err != nil {
				return nil, fmt.Errorf("failed to decode tags for %s: %w", c.ID, err)
			}
		}
		containers = append(containers, c)
	}
	return containers, rows.Err()
}

// ListImages returns the images attached to a container in upload order
func (r *ContentRepository) ListImages(ctx context.Context, containerID string) ([]domain.StoredImage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, container_id, urls_json, size_bytes
		FROM images
		WHERE container_id = ?
		ORDER BY created_at, rowid
	`, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []domain.StoredImage
	for rows.Next() {
		var (
			img      domain.StoredImage
			urlsJSON string
		)
		if err := rows.Scan(&img.ID, &img.ContainerID, &urlsJSON, &img.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		if err := json.Unmarshal([]byte(urlsJSON), &img.URLs); err != nil {
			return nil, fmt.Errorf("failed to decode urls for %s: %w", img.ID, err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// BlobKeys returns every blob key referenced by the user's images
func (r *ContentRepository) BlobKeys(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT i.blob_key
		FROM images i
		JOIN containers c ON c.id = i.container_id
		WHERE c.user_id = ?
		ORDER BY i.blob_key
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blob keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan blob key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
