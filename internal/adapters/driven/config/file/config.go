package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvAPIToken overrides the configured API token when set. Tokens belong in
// the environment, not in config files checked into dotfile repos.
const EnvAPIToken = "CLEARINGHOUSE_API_TOKEN"

// Config is the application configuration loaded from a TOML file. It is a
// plain value passed to constructors; nothing reads it ambiently.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Ingest  IngestConfig  `toml:"ingest"`
}

// APIConfig configures the live Clearinghouse client.
type APIConfig struct {
	BaseURL           string  `toml:"base_url"`
	Token             string  `toml:"token"`
	UserAgent         string  `toml:"user_agent"`
	TimeoutSeconds    float64 `toml:"timeout_seconds"`
	MaxRetries        int     `toml:"max_retries"`
	BackoffSeconds    float64 `toml:"backoff_seconds"`
	MaxBackoffSeconds float64 `toml:"max_backoff_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Timeout returns the request timeout as a duration.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// Backoff returns the base retry delay as a duration.
func (c APIConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffSeconds * float64(time.Second))
}

// MaxBackoff returns the retry delay cap as a duration.
func (c APIConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffSeconds * float64(time.Second))
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	// DataDir holds the database file. Empty means the store's default
	// (~/.clearinghouse/data).
	DataDir string `toml:"data_dir"`
}

// IngestConfig sets the pipeline's run policy.
type IngestConfig struct {
	CheckpointKey        string `toml:"checkpoint_key"`
	ResumeFromCheckpoint bool   `toml:"resume_from_checkpoint"`
	ArchiveRawPayloads   bool   `toml:"archive_raw_payloads"`
	ContinueOnError      bool   `toml:"continue_on_error"`
	FixturePath          string `toml:"fixture_path"`
	MaxSummarySentences  int    `toml:"max_summary_sentences"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:           "https://clearinghouse.net/api/v2p1",
			UserAgent:         "clearinghouse-cli/0.1",
			TimeoutSeconds:    30,
			MaxRetries:        4,
			BackoffSeconds:    0.5,
			MaxBackoffSeconds: 8,
			RequestsPerSecond: 4,
		},
		Ingest: IngestConfig{
			CheckpointKey:        "live-default",
			ResumeFromCheckpoint: true,
			ArchiveRawPayloads:   true,
			ContinueOnError:      true,
			MaxSummarySentences:  4,
		},
	}
}

// DefaultPath returns ~/.clearinghouse/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".clearinghouse", "config.toml"), nil
}

// Load reads the config file at path, layered over the defaults. An empty
// path means the default location; a missing file yields the defaults.
// The token environment variable wins over the file in either case.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = defaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No config file yet - run on defaults.
	case err != nil:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if token := os.Getenv(EnvAPIToken); token != "" {
		cfg.API.Token = token
	}
	return cfg, nil
}
