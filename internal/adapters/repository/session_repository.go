package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/kamal-hamza/tagbox/internal/core/domain"
	"github.com/kamal-hamza/tagbox/internal/core/ports"
)

// FileSessionRepository keeps the signed-in local profile in a yaml file
type FileSessionRepository struct {
	path string
}

// NewFileSessionRepository creates a session store at path
func NewFileSessionRepository(path string) *FileSessionRepository {
	return &FileSessionRepository{path: path}
}

var _ ports.SessionProvider = (*FileSessionRepository)(nil)

// CurrentUser returns the signed-in user, or nil when nobody is signed in
func (r *FileSessionRepository) CurrentUser(ctx context.Context) (*domain.User, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var user domain.User
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	if user.ID == "" {
		return nil, nil
	}
	return &user, nil
}

// Login signs in as name. Signing in again with the same name keeps the user ID,
// so the library survives a logout.
func (r *FileSessionRepository) Login(ctx context.Context, name string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "name cannot be empty")
	}

	user := &domain.User{
		ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.ToLower(name))).String(),
		Name:      name,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	data, err := yaml.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write session: %w", err)
	}
	return user, nil
}

// Logout removes the session file
func (r *FileSessionRepository) Logout(ctx context.Context) error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
