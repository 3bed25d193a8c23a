package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
)

// AttemptRepository tracks auto-save attempts per share so a share is
// handed to persistence at most once, across processes.
type AttemptRepository struct {
	db *sql.DB
}

// NewAttemptRepository creates a new sqlite-backed attempt tracker
func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

var _ ports.AttemptTracker = (*AttemptRepository)(nil)

// Lookup returns the attempt recorded for a share, or nil
func (r *AttemptRepository) Lookup(ctx context.Context, shareID string) (*ports.AttemptRecord, error) {
	var (
		rec           ports.AttemptRecord
		state, reason string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT share_id, attempt_id, state, reason FROM attempts WHERE share_id = ?
	`, shareID).Scan(&rec.ShareID, &rec.AttemptID, &state, &reason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up attempt: %w", err)
	}
	rec.State = domain.PipelineState(state)
	rec.Reason = domain.Reason(reason)
	return &rec, nil
}

// Claim inserts the AutoSaving record unless one exists. The insert is the
// compare-and-set: exactly one concurrent caller sees a changed row.
func (r *AttemptRepository) Claim(ctx context.Context, shareID, attemptID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attempts (share_id, attempt_id, state, reason, updated_at)
		VALUES (?, ?, ?, '', ?)
		ON CONFLICT(share_id) DO NOTHING
	`, shareID, attemptID, string(domain.StateAutoSaving), time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("failed to claim share: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim share: %w", err)
	}
	return n == 1, nil
}

// Finish records the terminal state of a claimed attempt
func (r *AttemptRepository) Finish(ctx context.Context, shareID, attemptID string, state domain.PipelineState, reason domain.Reason) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attempts SET state = ?, reason = ?, updated_at = ?
		WHERE share_id = ? AND attempt_id = ?
	`, string(state), string(reason), time.Now().Unix(), shareID, attemptID)
	if err != nil {
		return fmt.Errorf("failed to finish attempt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewError(domain.ErrNotFound, "no claimed attempt for share "+shareID)
	}
	return nil
}

// Forget removes the record, used when a share is explicitly cleared
func (r *AttemptRepository) Forget(ctx context.Context, shareID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attempts WHERE share_id = ?`, shareID); err != nil {
		return fmt.Errorf("failed to forget attempt: %w", err)
	}
	return nil
}
