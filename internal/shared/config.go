package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/trackdrop/internal/models"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that take precedence over the config file.
const (
	EnvSpotifyClientID     = "TRACKDROP_SPOTIFY_CLIENT_ID"
	EnvSpotifyClientSecret = "TRACKDROP_SPOTIFY_CLIENT_SECRET"
	EnvLedgerDir           = "TRACKDROP_LEDGER_DIR"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Telegram    TelegramConfig    `toml:"telegram"`
	Fetcher     FetcherConfig     `toml:"fetcher"`
	Sync        SyncConfig        `toml:"sync"`
	Catalog     CatalogConfig     `toml:"catalog"`
	Database    DatabaseConfig    `toml:"database"`
	Artists     []ArtistConfig    `toml:"artists"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API client credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// TelegramConfig contains Bot API settings shared by every artist binding.
type TelegramConfig struct {
	APIURL string `toml:"api_url"`
}

// FetcherConfig configures the yt-dlp media fetcher.
type FetcherConfig struct {
	Binary      string        `toml:"binary"`
	AudioFormat string        `toml:"audio_format"`
	WorkDir     string        `toml:"work_dir"`
	Timeout     time.Duration `toml:"timeout"`
}

// SyncConfig contains orchestrator settings.
type SyncConfig struct {
	LedgerDir  string        `toml:"ledger_dir"`
	ArtworkDir string        `toml:"artwork_dir"`
	Delay      time.Duration `toml:"delay"`
}

// CatalogConfig contains Spotify Web API endpoints and client limits.
type CatalogConfig struct {
	BaseURL           string  `toml:"base_url"`
	TokenURL          string  `toml:"token_url"`
	Concurrency       int     `toml:"concurrency"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ArtistConfig binds an artist to the Telegram bot and channel its tracks are posted to.
type ArtistConfig struct {
	Name      string `toml:"name"`
	Token     string `toml:"token"`
	ChannelID string `toml:"channel_id"`
}

// Binding converts the config entry to a [models.Binding].
func (a ArtistConfig) Binding() models.Binding {
	return models.Binding{
		Artist:      a.Name,
		Destination: models.Destination{Token: a.Token, ChannelID: a.ChannelID},
	}
}

// Map returns the Spotify credentials in the form expected by the catalog service constructor.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
	}
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Unset fields fall back to the embedded defaults, and environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	config.Artists = nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.ApplyEnv()
	return config, nil
}

// LoadEnv loads variables from a .env file into the process environment if one exists.
//
// Variables that are already set are not overridden.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides config values with any TRACKDROP_* environment variables that are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvSpotifyClientID); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv(EnvSpotifyClientSecret); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v := os.Getenv(EnvLedgerDir); v != "" {
		c.Sync.LedgerDir = v
	}
}

// Validate reports configuration faults. Every returned error wraps [ErrInvalidConfig] or [ErrMissingCredentials].
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Credentials.Spotify.ClientID) == "" || strings.TrimSpace(c.Credentials.Spotify.ClientSecret) == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret must be set", ErrMissingCredentials)
	}

	if len(c.Artists) == 0 {
		return fmt.Errorf("%w: no artists configured", ErrInvalidConfig)
	}

	seen := make(map[string]struct{}, len(c.Artists))
	for i, a := range c.Artists {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("%w: artist #%d has no name", ErrInvalidConfig, i+1)
		}
		if a.Token == "" || a.ChannelID == "" {
			return fmt.Errorf("%w: artist %q needs both token and channel_id", ErrMissingCredentials, a.Name)
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("%w: artist %q is configured twice", ErrInvalidConfig, a.Name)
		}
		seen[a.Name] = struct{}{}
	}

	if c.Sync.Delay < 0 {
		return fmt.Errorf("%w: sync delay must not be negative", ErrInvalidConfig)
	}
	if c.Sync.LedgerDir == "" {
		return fmt.Errorf("%w: sync ledger_dir must be set", ErrInvalidConfig)
	}
	if c.Sync.ArtworkDir != "" && contains(c.Sync.ArtworkDir, c.Sync.LedgerDir) {
		return fmt.Errorf("%w: sync artwork_dir %q must not be or contain ledger_dir %q",
			ErrInvalidConfig, c.Sync.ArtworkDir, c.Sync.LedgerDir)
	}

	return nil
}

// contains reports whether path is dir or lies beneath it.
func contains(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Bindings returns the configured artists in order, optionally restricted to the named ones.
func (c *Config) Bindings(only ...string) ([]models.Binding, error) {
	if len(only) == 0 {
		bindings := make([]models.Binding, len(c.Artists))
		for i, a := range c.Artists {
			bindings[i] = a.Binding()
		}
		return bindings, nil
	}

	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[name] = false
	}

	var bindings []models.Binding
	for _, a := range c.Artists {
		if _, ok := wanted[a.Name]; ok {
			wanted[a.Name] = true
			bindings = append(bindings, a.Binding())
		}
	}

	for name, found := range wanted {
		if !found {
			return nil, fmt.Errorf("%w: artist %q is not configured", ErrInvalidArgument, name)
		}
	}

	return bindings, nil
}

// Artist looks up a configured artist by name.
func (c *Config) Artist(name string) (ArtistConfig, bool) {
	for _, a := range c.Artists {
		if a.Name == name {
			return a, true
		}
	}
	return ArtistConfig{}, false
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
