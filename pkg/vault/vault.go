package vault

import (
	"fmt"
	"os"
	"path/filepath"
)

// Vault represents the managed storage directory for tagbox
type Vault struct {
	RootPath   string
	SharePath  string // side-channel keys written by the share handler
	AssetsPath string // locally stored image blobs
	InboxPath  string // drop folder watched by 'tagbox watch'
	CachePath  string
	ConfigPath string
}

// New creates a new Vault instance with XDG-compliant paths
func New() (*Vault, error) {
	rootPath, rootErr := getVaultRoot()
	configPath, configErr := getConfigPath()
	if rootErr != nil {
		return nil, fmt.Errorf("failed to determine vault root: %w", rootErr)
	}
	if configErr != nil {
		return nil, fmt.Errorf("failed to determine config path: %w", configErr)
	}

	return NewAt(rootPath, configPath), nil
}

// NewAt lays out a vault under rootPath. Used by tests and TAGBOX_HOME.
func NewAt(rootPath, configPath string) *Vault {
	return &Vault{
		RootPath:   rootPath,
		SharePath:  filepath.Join(rootPath, "share"),
		AssetsPath: filepath.Join(rootPath, "assets"),
		InboxPath:  filepath.Join(rootPath, "inbox"),
		CachePath:  filepath.Join(rootPath, "cache"),
		ConfigPath: configPath,
	}
}

// getVaultRoot returns the vault root directory path
// Follows the XDG Base Directory layout on Unix and uses AppData on Windows
func getVaultRoot() (string, error) {
	if home := os.Getenv("TAGBOX_HOME"); home != "" {
		return home, nil
	}

	// Check XDG_DATA_HOME first (Unix-like systems)
	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		return filepath.Join(xdgDataHome, "tagbox"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// Check if we're on Windows by looking for APPDATA
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "tagbox"), nil
	}

	// Fall back to ~/.local/share/tagbox (Unix-like systems)
	return filepath.Join(homeDir, ".local", "share", "tagbox"), nil
}

func getConfigPath() (string, error) {
	if home := os.Getenv("TAGBOX_HOME"); home != "" {
		return filepath.Join(home, "config.yaml"), nil
	}

	// Check XDG_CONFIG_HOME first (Unix-like systems)
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "tagbox", "config.yaml"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// Check if we're on Windows by looking for APPDATA
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "tagbox-config", "config.yaml"), nil
	}

	// Fall back to ~/.config/tagbox/config.yaml (Unix-like systems)
	return filepath.Join(homeDir, ".config", "tagbox", "config.yaml"), nil
}

// Initialize creates the vault directory structure if it doesn't exist
func (v *Vault) Initialize() error {
	directories := []string{
		v.RootPath,
		v.SharePath,
		v.AssetsPath,
		v.InboxPath,
		v.CachePath,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Exists checks if the vault has been initialized
func (v *Vault) Exists() bool {
	info, err := os.Stat(v.RootPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// DatabasePath returns the path to the sqlite library database
func (v *Vault) DatabasePath() string {
	return filepath.Join(v.RootPath, "tagbox.db")
}

// PendingSharePath returns the path to the pending share manifest
func (v *Vault) PendingSharePath() string {
	return filepath.Join(v.RootPath, "pending_share.json")
}

// SessionPath returns the path to the signed-in session file
func (v *Vault) SessionPath() string {
	return filepath.Join(v.RootPath, "session.yaml")
}

// EnvPath returns the .env file read next to the config file
func (v *Vault) EnvPath() string {
	return filepath.Join(filepath.Dir(v.ConfigPath), ".env")
}

// GetAssetPath returns the full path for a stored blob
func (v *Vault) GetAssetPath(key string) string {
	return filepath.Join(v.AssetsPath, filepath.FromSlash(key))
}

// GetCachePath returns the full path for a cached file
func (v *Vault) GetCachePath(filename string) string {
	return filepath.Join(v.CachePath, filename)
}

// GetInboxPath returns the full path for a file in the inbox
func (v *Vault) GetInboxPath(filename string) string {
	return filepath.Join(v.InboxPath, filename)
}
