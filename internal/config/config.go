// Package config manages shoprestore configuration and the .shoprestore
// directory. Secrets are never written to the config file; they are read
// from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

const (
	Dir          = ".shoprestore"
	ConfigFile   = "config"
	DatabaseFile = "logs.db"
	ReportsFile  = "reports.db"

	DefaultListen       = "127.0.0.1:8720"
	DefaultServerURL    = "http://127.0.0.1:8720"
	DefaultRefreshDelay = 50 * time.Millisecond
)

// Environment variables holding secrets.
const (
	EnvAccessToken = "SHOPRESTORE_ACCESS_TOKEN"
	EnvAPIToken    = "SHOPRESTORE_API_TOKEN"
)

var configValidate = validator.New()

// Config represents the shoprestore configuration
type Config struct {
	ShopDomain     string   `toml:"shop_domain" validate:"required,hostname|url"`
	APIVersion     string   `toml:"api_version,omitempty" validate:"omitempty,len=7"`
	Listen         string   `toml:"listen,omitempty" validate:"omitempty,hostname_port"`
	ServerURL      string   `toml:"server_url,omitempty" validate:"omitempty,url"`
	WebhookURLs    []string `toml:"webhook_urls,omitempty" validate:"dive,url"`
	RefreshDelayMS int      `toml:"refresh_delay_ms,omitempty" validate:"gte=0,lte=60000"`
	path           string   // path to .shoprestore directory
}

// FindRoot finds the .shoprestore directory by walking up from current directory
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		p := filepath.Join(dir, Dir)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a shoprestore workspace (or any parent up to root)")
		}
		dir = parent
	}
}

// Load loads and validates the configuration from the .shoprestore directory
func Load() (*Config, error) {
	root, err := FindRoot()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(root, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.path = root
	return &cfg, nil
}

// Validate checks field formats.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0600)
}

// Path returns the path to the .shoprestore directory
func (c *Config) Path() string {
	return c.path
}

// DatabasePath returns the path to the SQLite log database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.path, DatabaseFile)
}

// ReportsPath returns the path to the bbolt report database
func (c *Config) ReportsPath() string {
	return filepath.Join(c.path, ReportsFile)
}

// ListenAddr returns the configured listen address or the default.
func (c *Config) ListenAddr() string {
	if c.Listen == "" {
		return DefaultListen
	}
	return c.Listen
}

// ServerAddress returns the URL the CLI talks to.
func (c *Config) ServerAddress() string {
	if c.ServerURL == "" {
		return DefaultServerURL
	}
	return c.ServerURL
}

// RefreshDelay returns the log view refresh debounce.
func (c *Config) RefreshDelay() time.Duration {
	if c.RefreshDelayMS <= 0 {
		return DefaultRefreshDelay
	}
	return time.Duration(c.RefreshDelayMS) * time.Millisecond
}

// AccessToken returns the Admin API access token from the environment.
func AccessToken() string {
	return os.Getenv(EnvAccessToken)
}

// APIToken returns the bearer token guarding the HTTP API.
func APIToken() string {
	return os.Getenv(EnvAPIToken)
}

// Initialize creates a new .shoprestore directory with initial configuration
func Initialize(shopDomain string) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root := filepath.Join(cwd, Dir)

	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("shoprestore workspace already exists")
	}

	cfg := &Config{
		ShopDomain: shopDomain,
		path:       root,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", Dir, err)
	}

	if err := cfg.Save(); err != nil {
		// Cleanup on failure
		os.RemoveAll(root)
		return nil, err
	}

	return cfg, nil
}
