package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Upload limits
	MaxUploadMB      int `yaml:"max_upload_mb"`
	MaxShareBase64MB int `yaml:"max_share_base64_mb"`

	Compression CompressionConfig `yaml:"compression"`
	Fetch       FetchConfig       `yaml:"fetch"`
	Plan        PlanConfig        `yaml:"plan"`
	Storage     StorageConfig     `yaml:"storage"`

	// Ingestion
	UseClipboard    bool   `yaml:"use_clipboard"`
	OpenFormOnDefer bool   `yaml:"open_form_on_defer"`
	InboxDir        string `yaml:"inbox_dir"`
	WatchDebounceMS int    `yaml:"watch_debounce_ms"`

	// UI Settings
	DisplayDateFormat string `yaml:"display_date_format"`
	ColorTheme        string `yaml:"color_theme"`
	TableWidth        int    `yaml:"table_width"`

	// Diagnostics
	LogLevel string `yaml:"log_level"`
	DevMode  bool   `yaml:"dev_mode"`
}

type CompressionConfig struct {
	MinQuality    int `yaml:"min_quality"`
	QualityStep   int `yaml:"quality_step"`
	MinDimension  int `yaml:"min_dimension"`
	MaxMegapixels int `yaml:"max_megapixels"`
}

type FetchConfig struct {
	TimeoutSeconds   int `yaml:"timeout_seconds"`
	MaxBytesMB       int `yaml:"max_bytes_mb"`
	BreakerFailures  int `yaml:"breaker_failures"`
	BreakerCooldownS int `yaml:"breaker_cooldown_seconds"`
}

// PlanConfig holds plan limits; -1 means unlimited
type PlanConfig struct {
	MaxScreenshots int64 `yaml:"max_screenshots"`
	MaxStorageMB   int64 `yaml:"max_storage_mb"`
}

type StorageConfig struct {
	Backend   string `yaml:"backend"` // local | s3
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PublicURL string `yaml:"public_url"`
}

const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// DefaultConfig returns a Config struct with default values
func DefaultConfig() *Config {
	return &Config{
		MaxUploadMB:      5,
		MaxShareBase64MB: 50,
		Compression: CompressionConfig{
			MinQuality:    30,
			QualityStep:   10,
			MinDimension:  320,
			MaxMegapixels: 40,
		},
		Fetch: FetchConfig{
			TimeoutSeconds:   15,
			MaxBytesMB:       25,
			BreakerFailures:  3,
			BreakerCooldownS: 30,
		},
		Plan: PlanConfig{
			MaxScreenshots: 5,
			MaxStorageMB:   -1,
		},
		Storage: StorageConfig{
			Backend: BackendLocal,
			Region:  "us-east-1",
		},
		UseClipboard:      true,
		OpenFormOnDefer:   true,
		InboxDir:          "",
		WatchDebounceMS:   500,
		DisplayDateFormat: "2006-01-02",
		ColorTheme:        "auto",
		TableWidth:        0,
		LogLevel:          "warn",
		DevMode:           false,
	}
}

// Load reads configuration from the specified file path
func Load(path string) (*Config, error) {
	// Start with default config
	cfg := DefaultConfig()

	// Try to read the file
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, return default config (not an error)
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults repairs missing or out-of-range values
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = def.MaxUploadMB
	}
	if c.MaxShareBase64MB <= 0 {
		c.MaxShareBase64MB = def.MaxShareBase64MB
	}
	if c.Compression.MinQuality <= 0 || c.Compression.MinQuality > 90 {
		c.Compression.MinQuality = def.Compression.MinQuality
	}
	if c.Compression.QualityStep <= 0 {
		c.Compression.QualityStep = def.Compression.QualityStep
	}
	if c.Compression.MinDimension <= 0 {
		c.Compression.MinDimension = def.Compression.MinDimension
	}
	if c.Compression.MaxMegapixels <= 0 {
		c.Compression.MaxMegapixels = def.Compression.MaxMegapixels
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = def.Fetch.TimeoutSeconds
	}
	if c.Fetch.MaxBytesMB <= 0 {
		c.Fetch.MaxBytesMB = def.Fetch.MaxBytesMB
	}
	if c.Fetch.BreakerFailures <= 0 {
		c.Fetch.BreakerFailures = def.Fetch.BreakerFailures
	}
	if c.Fetch.BreakerCooldownS <= 0 {
		c.Fetch.BreakerCooldownS = def.Fetch.BreakerCooldownS
	}
	if c.Plan.MaxScreenshots < -1 {
		c.Plan.MaxScreenshots = -1
	}
	if c.Plan.MaxStorageMB < -1 {
		c.Plan.MaxStorageMB = -1
	}
	if !isValidBackend(c.Storage.Backend) {
		c.Storage.Backend = BackendLocal
	}
	if c.Storage.Region == "" {
		c.Storage.Region = def.Storage.Region
	}
	if c.WatchDebounceMS <= 0 {
		c.WatchDebounceMS = def.WatchDebounceMS
	}
	if c.DisplayDateFormat == "" {
		c.DisplayDateFormat = def.DisplayDateFormat
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Validate reports settings that cannot work together
func (c *Config) Validate() error {
	if c.Storage.Backend == BackendS3 && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required for the s3 backend")
	}
	return nil
}

// LoadEnv reads a .env file into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides file values with TAGBOX_* environment variables
func (c *Config) ApplyEnv() {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	num64 := func(key string, dst *int64) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}

	num("TAGBOX_MAX_UPLOAD_MB", &c.MaxUploadMB)
	num64("TAGBOX_PLAN_MAX_SCREENSHOTS", &c.Plan.MaxScreenshots)
	num64("TAGBOX_PLAN_MAX_STORAGE_MB", &c.Plan.MaxStorageMB)
	str("TAGBOX_STORAGE_BACKEND", &c.Storage.Backend)
	str("TAGBOX_S3_ENDPOINT", &c.Storage.Endpoint)
	str("TAGBOX_S3_BUCKET", &c.Storage.Bucket)
	str("TAGBOX_S3_REGION", &c.Storage.Region)
	str("TAGBOX_S3_ACCESS_KEY", &c.Storage.AccessKey)
	str("TAGBOX_S3_SECRET_KEY", &c.Storage.SecretKey)
	str("TAGBOX_LOG_LEVEL", &c.LogLevel)
	str("TAGBOX_INBOX_DIR", &c.InboxDir)
	flag("TAGBOX_USE_CLIPBOARD", &c.UseClipboard)
	flag("TAGBOX_DEV", &c.DevMode)

	c.applyDefaults()
}

// Save persists the current configuration to the specified file path
func (c *Config) Save(path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MaxUploadBytes returns the upload ceiling in bytes
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// MaxShareBase64Bytes returns the encoded side-channel limit in bytes
func (c *Config) MaxShareBase64Bytes() int {
	return c.MaxShareBase64MB * 1024 * 1024
}

// MaxStorageBytes returns the plan's byte ceiling, or -1
func (c *Config) MaxStorageBytes() int64 {
	if c.Plan.MaxStorageMB < 0 {
		return -1
	}
	return c.Plan.MaxStorageMB * 1024 * 1024
}

// isValidBackend checks if the storage backend is supported
func isValidBackend(backend string) bool {
	validBackends := []string{BackendLocal, BackendS3}
	for _, valid := range validBackends {
		if backend == valid {
			return true
		}
	}
	return false
}
