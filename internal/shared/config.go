package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that take precedence over values read from config.toml.
const (
	EnvClientID     = "SPOTIFY_CLIENT_ID"
	EnvClientSecret = "SPOTIFY_CLIENT_SECRET"
	EnvExecutable   = "SPOTX_EXECUTABLE"
	EnvOutputDir    = "SPOTX_OUTPUT_DIR"
	EnvDatabasePath = "SPOTX_DATABASE_PATH"
	EnvLogLevel     = "SPOTX_LOG_LEVEL"
	EnvFetchTimeout = "SPOTX_FETCH_TIMEOUT"
	EnvDLTimeout    = "SPOTX_DOWNLOAD_TIMEOUT"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	SpotDL      SpotDLConfig      `toml:"spotdl"`
	Timeouts    TimeoutsConfig    `toml:"timeouts"`
	Downloads   DownloadsConfig   `toml:"downloads"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Logging     LoggingConfig     `toml:"logging"`
}

// SpotDLConfig describes how the spotdl process is launched.
type SpotDLConfig struct {
	Executable string    `toml:"executable"` // python interpreter, or the spotdl binary when module is empty
	Module     string    `toml:"module"`     // passed as "-m <module>"
	FFmpeg     string    `toml:"ffmpeg"`
	BinDir     string    `toml:"bin_dir"` // appended to PATH
	OutputDir  string    `toml:"output_dir"`
	Env        EnvConfig `toml:"env"`
}

// EnvConfig is the environment overlay applied to every spotdl process.
type EnvConfig struct {
	PythonHome  string `toml:"python_home"`
	LibraryPath string `toml:"library_path"`
	CertFile    string `toml:"cert_file"`
	Home        string `toml:"home"`
	TmpDir      string `toml:"tmp_dir"`
	LDFlags     string `toml:"ldflags"`
}

// TimeoutsConfig holds the deadlines of the metadata fetch and direct download paths.
type TimeoutsConfig struct {
	Fetch    time.Duration `toml:"fetch"`
	Download time.Duration `toml:"download"`
}

// DownloadsConfig holds the default download preferences and batch settings.
type DownloadsConfig struct {
	Format         string   `toml:"format"`
	Bitrate        string   `toml:"bitrate"`
	OutputTemplate string   `toml:"output_template"`
	Threads        int      `toml:"threads"`
	Lyrics         []string `toml:"lyrics"`
	AudioProviders []string `toml:"audio_providers"`
	SkipExplicit   bool     `toml:"skip_explicit"`
	GenerateLRC    bool     `toml:"generate_lrc"`
	SponsorBlock   bool     `toml:"sponsor_block"`
	SkipInfoFetch  bool     `toml:"skip_info_fetch"`
	Workers        int      `toml:"workers"`
	RateLimit      float64  `toml:"rate_limit"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API client credentials forwarded to spotdl.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenURL     string `toml:"token_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings for the local status API.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig configures the console logger and the rotating debug log.
type LoggingConfig struct {
	Level    string `toml:"level"`
	File     string `toml:"file"`
	MaxBytes int64  `toml:"max_bytes"`
}

// HasSpotifyCredentials reports whether both client id and secret are set.
func (c *Config) HasSpotifyCredentials() bool {
	return c.Credentials.Spotify.ClientID != "" && c.Credentials.Spotify.ClientSecret != ""
}

// Validate checks the values the engine cannot run without.
func (c *Config) Validate() error {
	if c.SpotDL.Executable == "" {
		return fmt.Errorf("%w: spotdl.executable is required", ErrInvalidConfig)
	}
	if c.Timeouts.Fetch <= 0 || c.Timeouts.Download <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if c.Downloads.Workers < 0 || c.Downloads.RateLimit < 0 {
		return fmt.Errorf("%w: downloads.workers and downloads.rate_limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
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
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes cfg to path as TOML, replacing any existing file.
func SaveConfig(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=value pairs from the given .env files into the process environment.
//
// Missing files are ignored; variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides config values with any SPOTX_* / SPOTIFY_* variables in the environment.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			// bare integers are read as seconds
			secs, aerr := strconv.Atoi(v)
			if aerr != nil {
				return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, v)
			}
			d = time.Duration(secs) * time.Second
		}
		*dst = d
		return nil
	}

	str(EnvClientID, &c.Credentials.Spotify.ClientID)
	str(EnvClientSecret, &c.Credentials.Spotify.ClientSecret)
	str(EnvExecutable, &c.SpotDL.Executable)
	str(EnvOutputDir, &c.SpotDL.OutputDir)
	str(EnvDatabasePath, &c.Database.Path)
	str(EnvLogLevel, &c.Logging.Level)

	if err := dur(EnvFetchTimeout, &c.Timeouts.Fetch); err != nil {
		return err
	}
	return dur(EnvDLTimeout, &c.Timeouts.Download)
}
