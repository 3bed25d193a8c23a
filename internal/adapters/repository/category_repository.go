package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
)

// CategoryRepository stores categories and the per-user default in sqlite
type CategoryRepository struct {
	db *sql.DB
}

// NewCategoryRepository creates a new sqlite-backed category repository
func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Ensure it implements the interfaces
var (
	_ ports.CategoryStore   = (*CategoryRepository)(nil)
	_ ports.PreferenceStore = (*CategoryRepository)(nil)
)

// ListCategories returns the user's categories ordered by name
func (r *CategoryRepository) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, color, created_at
		FROM categories
		WHERE user_id = ?
		ORDER BY name_norm, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var (
			c       domain.Category
			color   string
			created int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &color, &created); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.Color = domain.ParseCategoryColor(color)
		c.CreatedAt = unixTime(created)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateCategory validates and inserts a category. Names are unique per user, ignoring case.
func (r *CategoryRepository) CreateCategory(ctx context.Context, userID string, category domain.Category) (string, error) {
	category.Name = strings.TrimSpace(category.Name)
	if err := domain.ValidateCategoryName(category.Name); err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "invalid category", err)
	}

	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, name_norm, description, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, category.ID, userID, category.Name, strings.ToLower(category.Name),
		strings.TrimSpace(category.Description), category.Color.String(), category.CreatedAt.Unix())
	if err != nil {
		if isUniqueConstraintError(err) {
			return "", domain.NewError(domain.ErrInvalidInput, fmt.Sprintf("category %q already exists", category.Name))
		}
		return "", fmt.Errorf("failed to create category: %w", err)
	}
	return category.ID, nil
}

// DefaultCategory returns the configured default category ID, or "" when unset.
// A default pointing at a deleted category is returned as is; callers validate it.
func (r *CategoryRepository) DefaultCategory(ctx context.Context, userID string) (string, error) {
	var id sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT default_category_id FROM preferences WHERE user_id = ?`, userID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read default category: %w", err)
	}
	return id.String, nil
}

// SetDefaultCategory stores the default category ID; "" unsets it
func (r *CategoryRepository) SetDefaultCategory(ctx context.Context, userID, categoryID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, default_category_id) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET default_category_id = excluded.default_category_id
	`, userID, toNullString(categoryID))
	if err != nil {
		return fmt.Errorf("failed to set default category: %w", err)
	}
	return nil
}
