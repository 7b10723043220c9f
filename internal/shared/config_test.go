package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testConfig = `[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[sync]
ledger_dir = "/var/lib/trackdrop/songs"
delay = "2s"

[database]
path = "/custom/path.db"

[[artists]]
name = "Boards of Canada"
token = "111:aaa"
channel_id = "-100111"

[[artists]]
name = "Aphex Twin"
token = "222:bbb"
channel_id = "@aphex"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./trackdrop.db" {
			t.Errorf("expected database path ./trackdrop.db, got %s", config.Database.Path)
		}
		if config.Sync.Delay != 5*time.Second {
			t.Errorf("expected sync delay 5s, got %v", config.Sync.Delay)
		}
		if config.Fetcher.Timeout != 10*time.Minute {
			t.Errorf("expected fetcher timeout 10m, got %v", config.Fetcher.Timeout)
		}
		if config.Catalog.BaseURL != "https://api.spotify.com/v1" {
			t.Errorf("unexpected catalog base url %s", config.Catalog.BaseURL)
		}
		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
		if len(config.Artists) != 1 {
			t.Errorf("expected one example artist, got %d", len(config.Artists))
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		config, err := LoadConfig(writeConfig(t, testConfig))
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Sync.Delay != 2*time.Second {
			t.Errorf("expected delay 2s, got %v", config.Sync.Delay)
		}
		if config.Fetcher.Binary != "yt-dlp" {
			t.Errorf("unset fetcher binary should fall back to default, got %q", config.Fetcher.Binary)
		}
		if len(config.Artists) != 2 || config.Artists[0].Name != "Boards of Canada" || config.Artists[1].Name != "Aphex Twin" {
			t.Errorf("artists not loaded in file order: %+v", config.Artists)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("LoadConfig malformed", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "[sync\nledger_dir ="))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Environment overrides", func(t *testing.T) {
		t.Setenv(EnvSpotifyClientID, "env_id")
		t.Setenv(EnvSpotifyClientSecret, "env_secret")
		t.Setenv(EnvLedgerDir, "/env/songs")

		config, err := LoadConfig(writeConfig(t, testConfig))
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "env_id" || config.Credentials.Spotify.ClientSecret != "env_secret" {
			t.Errorf("spotify credentials not overridden: %+v", config.Credentials.Spotify)
		}
		if config.Sync.LedgerDir != "/env/songs" {
			t.Errorf("ledger dir not overridden: %s", config.Sync.LedgerDir)
		}
	})

	t.Run("LoadEnv", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("TRACKDROP_LEDGER_DIR=/dotenv/songs\n"), 0644); err != nil {
			t.Fatal(err)
		}
		t.Setenv(EnvLedgerDir, "")
		os.Unsetenv(EnvLedgerDir)

		if err := LoadEnv(envPath); err != nil {
			t.Fatalf("LoadEnv() error = %v", err)
		}
		if got := os.Getenv(EnvLedgerDir); got != "/dotenv/songs" {
			t.Errorf("expected env from file, got %q", got)
		}

		if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Errorf("missing env file should be ignored, got %v", err)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.Credentials.Spotify = SpotifyConfig{ClientID: "id", ClientSecret: "secret"}
		c.Artists = []ArtistConfig{{Name: "A", Token: "t", ChannelID: "c"}}
		return c
	}

	tc := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing spotify secret", mutate: func(c *Config) { c.Credentials.Spotify.ClientSecret = "" }, want: ErrMissingCredentials},
		{name: "no artists", mutate: func(c *Config) { c.Artists = nil }, want: ErrInvalidConfig},
		{name: "unnamed artist", mutate: func(c *Config) { c.Artists[0].Name = " " }, want: ErrInvalidConfig},
		{name: "missing token", mutate: func(c *Config) { c.Artists[0].Token = "" }, want: ErrMissingCredentials},
		{name: "duplicate artist", mutate: func(c *Config) { c.Artists = append(c.Artists, c.Artists[0]) }, want: ErrInvalidConfig},
		{name: "negative delay", mutate: func(c *Config) { c.Sync.Delay = -time.Second }, want: ErrInvalidConfig},
		{name: "no ledger dir", mutate: func(c *Config) { c.Sync.LedgerDir = "" }, want: ErrInvalidConfig},
		{name: "artwork dir beside ledger", mutate: func(c *Config) { c.Sync.LedgerDir, c.Sync.ArtworkDir = "./songs", "./tmp/artwork" }},
		{name: "artwork dir inside ledger", mutate: func(c *Config) { c.Sync.LedgerDir, c.Sync.ArtworkDir = "./songs", "./songs/artwork" }},
		{name: "artwork dir named like ledger", mutate: func(c *Config) { c.Sync.LedgerDir, c.Sync.ArtworkDir = "./songs", "./songs-art" }},
		{name: "artwork dir is ledger dir", mutate: func(c *Config) { c.Sync.LedgerDir, c.Sync.ArtworkDir = "./songs", "songs/" }, want: ErrInvalidConfig},
		{name: "artwork dir is cwd", mutate: func(c *Config) { c.Sync.LedgerDir, c.Sync.ArtworkDir = "./songs", "." }, want: ErrInvalidConfig},
		{name: "artwork dir is ledger parent", mutate: func(c *Config) { c.Sync.LedgerDir, c.Sync.ArtworkDir = "/var/lib/trackdrop/songs", "/var/lib" }, want: ErrInvalidConfig},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfigBindings(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	t.Run("all in order", func(t *testing.T) {
		bindings, err := config.Bindings()
		if err != nil {
			t.Fatalf("Bindings() error = %v", err)
		}
		if len(bindings) != 2 || bindings[0].Artist != "Boards of Canada" || bindings[1].Destination.ChannelID != "@aphex" {
			t.Errorf("unexpected bindings: %+v", bindings)
		}
	})

	t.Run("filtered keeps config order", func(t *testing.T) {
		bindings, err := config.Bindings("Aphex Twin", "Boards of Canada")
		if err != nil {
			t.Fatalf("Bindings() error = %v", err)
		}
		if bindings[0].Artist != "Boards of Canada" {
			t.Errorf("expected config order, got %+v", bindings)
		}
	})

	t.Run("unknown artist", func(t *testing.T) {
		if _, err := config.Bindings("Nobody"); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestConfigArtist(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if a, ok := config.Artist("Aphex Twin"); !ok || a.ChannelID != "@aphex" {
		t.Errorf("Artist() = %+v, %v", a, ok)
	}
	if _, ok := config.Artist("aphex twin"); ok {
		t.Error("lookup should be case-sensitive")
	}
}
