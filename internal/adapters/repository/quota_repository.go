package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
)

// QuotaRepository reports stored image usage against the configured plan
type QuotaRepository struct {
	db       *sql.DB
	maxCount int64
	maxBytes int64
}

// NewQuotaRepository creates a quota source. Use domain.Unlimited for no ceiling.
func NewQuotaRepository(db *sql.DB, maxCount, maxBytes int64) *QuotaRepository {
	return &QuotaRepository{
		db:       db,
		maxCount: maxCount,
		maxBytes: maxBytes,
	}
}

var _ ports.QuotaSource = (*QuotaRepository)(nil)

// QuotaSnapshot counts the user's stored images and bytes
func (r *QuotaRepository) QuotaSnapshot(ctx context.Context, userID string) (domain.QuotaSnapshot, error) {
	snap := domain.QuotaSnapshot{
		MaxCount: r.maxCount,
		MaxBytes: r.maxBytes,
	}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(i.id), COALESCE(SUM(i.size_bytes), 0)
		FROM images i
		JOIN containers c ON c.id = i.container_id
		WHERE c.user_id = ?
	`, userID).Scan(&snap.CurrentCount, &snap.CurrentBytes)
	if err != nil {
		return domain.QuotaSnapshot{}, fmt.Errorf("failed to read usage: %w", err)
	}
	return snap, nil
}
